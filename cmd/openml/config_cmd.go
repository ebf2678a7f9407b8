package main

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/openml-client/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change the configuration",
	}

	cmd.AddCommand(
		newConfigShowCommand(flags),
		newConfigGetCommand(flags),
		newConfigSetCommand(flags),
		newConfigPathCommand(flags),
	)
	return cmd
}

func newConfigShowCommand(flags *globalFlags) *cobra.Command {
	var showKeys bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if !showKeys {
				cfg = maskAPIKeys(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&showKeys, "show-keys", false, "print API keys in clear text")
	return cmd
}

func newConfigGetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Print a single configuration value",
		Example: "  openml config get connection.retry_policy",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			value, err := config.Get(cfg, args[0])
			if err != nil {
				return err
			}
			if _, isSection := value.(map[string]interface{}); isSection {
				data, err := yaml.Marshal(value)
				if err != nil {
					return fmt.Errorf("encode %s: %w", args[0], err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigSetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Change a configuration value in the config file",
		Example: "  openml config set apis.v1.api_key 0123456789abcdef\n  openml config set cache.ttl 24h",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath()
			cfg, err := config.Load(flags.configFile)
			if err != nil {
				return err
			}
			cfg, err = config.With(cfg, args[0], args[1])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
			return nil
		},
	}
}

func newConfigPathCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), flags.configPath())
		},
	}
}

// configPath returns the file config commands read and write.
func (f *globalFlags) configPath() string {
	if f.configFile != "" {
		return f.configFile
	}
	return config.DefaultConfigFile()
}

// maskAPIKeys hides all but the last four characters of every API key.
func maskAPIKeys(cfg config.Config) config.Config {
	cfg = cfg.Clone()
	for version, api := range cfg.APIs {
		if api.APIKey == "" {
			continue
		}
		visible := 4
		if len(api.APIKey) <= visible {
			visible = 0
		}
		api.APIKey = strings.Repeat("*", len(api.APIKey)-visible) + api.APIKey[len(api.APIKey)-visible:]
		cfg.APIs[version] = api
	}
	return cfg
}
