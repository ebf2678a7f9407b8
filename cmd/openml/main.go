// Command openml is a command line client for the OpenML API.
//
// Configuration is read from ~/.config/openml/config.yml (see --config) and
// OPENML_* environment variables; single values can be overridden with
// --set key=value.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/openml-client/pkg/backend"
	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/config"
	"github.com/Sternrassler/openml-client/pkg/logging"
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by all commands.
type globalFlags struct {
	configFile string
	apiVersion string
	fallback   string
	overrides  []string
	logLevel   string
	prettyLogs bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "openml",
		Short: "OpenML API client",
		Long: `A command-line interface for the OpenML API.

Resources are fetched through a local response cache and can be served by
the v1 or v2 API, with an optional fallback version for operations the
preferred version does not support.`,
		Version:       client.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			logging.Setup(logging.Config{
				Level:  level,
				Pretty: flags.prettyLogs,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "config file (default is "+config.DefaultConfigFile()+")")
	pf.StringVar(&flags.apiVersion, "api-version", "", "preferred API version (v1, v2)")
	pf.StringVar(&flags.fallback, "fallback", "", "fallback API version (v1, v2)")
	pf.StringArrayVar(&flags.overrides, "set", nil, "override a config value (key=value, repeatable)")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.BoolVar(&flags.prettyLogs, "pretty", false, "human-readable log output")

	rootCmd.AddCommand(
		newGetCommand(flags),
		newListCommand(flags),
		newFetchCommand(flags),
		newDeleteCommand(flags),
		newTagCommand(flags, true),
		newTagCommand(flags, false),
		newPublishCommand(flags),
		newDownloadCommand(flags),
		newConfigCommand(flags),
		newServeCommand(flags),
	)

	return rootCmd
}

// loadConfig reads the configuration and applies the flag overrides.
func (f *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return config.Config{}, err
	}
	return f.apply(cfg)
}

// apply patches cfg with --api-version, --fallback and --set.
func (f *globalFlags) apply(cfg config.Config) (config.Config, error) {
	var err error
	if f.apiVersion != "" {
		if cfg, err = config.With(cfg, "api_version", f.apiVersion); err != nil {
			return config.Config{}, err
		}
	}
	if f.fallback != "" {
		if cfg, err = config.With(cfg, "fallback_api_version", f.fallback); err != nil {
			return config.Config{}, err
		}
	}
	for _, override := range f.overrides {
		key, value, ok := strings.Cut(override, "=")
		if !ok {
			return config.Config{}, fmt.Errorf("invalid --set %q: expected key=value", override)
		}
		if cfg, err = config.With(cfg, key, value); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newBackend builds a backend from the effective configuration.
func (f *globalFlags) newBackend() (*backend.Backend, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	return backend.Build(cfg)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
