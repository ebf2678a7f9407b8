package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: OPENML_CONNECTION_RETRIES
// sets connection.retries.
const EnvPrefix = "OPENML"

// DefaultConfigFile returns ~/.config/openml/config.yml (or the platform
// equivalent).
func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("~", ".config", "openml", "config.yml")
	}
	return filepath.Join(dir, "openml", "config.yml")
}

// Load reads the configuration. Values come from Default, then the YAML
// file at path, then OPENML_* environment variables. An empty path reads
// DefaultConfigFile if it exists; an explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(DefaultConfigFile())
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", DefaultConfigFile(), err)
		}
	}

	var cfg Config
	if err := decode(v.AllSettings(), &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path. The file may carry API keys and is
// created with mode 0600.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// With returns a copy of cfg with the value at keyPath replaced. Key paths
// use the YAML names joined by dots ("cache.ttl", "apis.v1.api_key").
// Strings are converted to the field type ("5" for an int, "1h" or "3600"
// for a duration). cfg itself is not modified.
func With(cfg Config, keyPath string, value interface{}) (Config, error) {
	tree, err := toMap(cfg)
	if err != nil {
		return Config{}, err
	}

	keys := strings.Split(keyPath, ".")
	node := tree
	for i, key := range keys[:len(keys)-1] {
		child, ok := node[key].(map[string]interface{})
		if !ok {
			return Config{}, fmt.Errorf("unknown config key %q", strings.Join(keys[:i+1], "."))
		}
		node = child
	}
	leaf := keys[len(keys)-1]
	if current, ok := node[leaf]; !ok {
		return Config{}, fmt.Errorf("unknown config key %q", keyPath)
	} else if _, isSection := current.(map[string]interface{}); isSection {
		return Config{}, fmt.Errorf("config key %q is a section, not a value", keyPath)
	}
	node[leaf] = value

	var out Config
	if err := decode(tree, &out); err != nil {
		return Config{}, fmt.Errorf("set %s: %w", keyPath, err)
	}
	return out, nil
}

// Get returns the value at keyPath in its YAML form.
func Get(cfg Config, keyPath string) (interface{}, error) {
	tree, err := toMap(cfg)
	if err != nil {
		return nil, err
	}

	var node interface{} = tree
	for _, key := range strings.Split(keyPath, ".") {
		section, ok := node.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unknown config key %q", keyPath)
		}
		if node, ok = section[key]; !ok {
			return nil, fmt.Errorf("unknown config key %q", keyPath)
		}
	}
	return node, nil
}

// toMap converts cfg to the nested map of its YAML form.
func toMap(cfg Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	tree := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return tree, nil
}

// decode maps settings onto cfg. Unknown keys are errors.
func decode(settings map[string]interface{}, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return fmt.Errorf("create config decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// secondsToDurationHook reads plain numbers, and strings holding plain
// numbers, as seconds.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))

	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			if seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return time.Duration(seconds * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}

// setDefaults registers every key of cfg with v, so environment variables
// can override keys absent from the config file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("api_version", string(cfg.APIVersion))
	v.SetDefault("fallback_api_version", string(cfg.FallbackAPIVersion))
	for version, api := range cfg.APIs {
		prefix := "apis." + string(version) + "."
		v.SetDefault(prefix+"server", api.Server)
		v.SetDefault(prefix+"base_path", api.BasePath)
		v.SetDefault(prefix+"api_key", api.APIKey)
	}
	v.SetDefault("connection.retries", cfg.Connection.Retries)
	v.SetDefault("connection.retry_policy", string(cfg.Connection.RetryPolicy))
	v.SetDefault("connection.timeout", cfg.Connection.Timeout.String())
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.ttl", cfg.Cache.TTL.String())
	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.redis.addr", cfg.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", cfg.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", cfg.Cache.Redis.DB)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}
