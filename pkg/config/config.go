// Package config holds the configuration of an OpenML backend.
//
// A Config is a plain value. Backends built from it copy what they need, so
// later edits never reach a running backend; use With to derive a patched
// copy and build a new backend from it.
//
// Configuration is loaded from a YAML file and OPENML_* environment
// variables on top of Default:
//
//	cfg, err := config.Load("")            // ~/.config/openml/config.yml if present
//	cfg, err = config.With(cfg, "connection.retry_policy", "robot")
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Sternrassler/openml-client/pkg/cache"
	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/resource"
)

// Cache store backends.
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

// APIConfig addresses one API version.
type APIConfig struct {
	Server   string `mapstructure:"server" yaml:"server"`
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
}

// ConnectionConfig controls the transports.
type ConnectionConfig struct {
	Retries     int                `mapstructure:"retries" yaml:"retries"`
	RetryPolicy client.RetryPolicy `mapstructure:"retry_policy" yaml:"retry_policy"`

	// Timeout bounds each attempt. Plain numbers are read as seconds.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RedisConfig addresses the Redis server of the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	// Dir is the cache root; downloads are stored below it for every
	// backend.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// TTL is the entry lifetime. Plain numbers are read as seconds.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// Backend is "file" or "redis".
	Backend string      `mapstructure:"backend" yaml:"backend"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// Config is the complete backend configuration.
type Config struct {
	// APIVersion is the preferred API version.
	APIVersion resource.APIVersion `mapstructure:"api_version" yaml:"api_version"`

	// FallbackAPIVersion serves operations APIVersion does not support.
	// Empty disables fallback.
	FallbackAPIVersion resource.APIVersion `mapstructure:"fallback_api_version" yaml:"fallback_api_version"`

	APIs       map[resource.APIVersion]APIConfig `mapstructure:"apis" yaml:"apis"`
	Connection ConnectionConfig                  `mapstructure:"connection" yaml:"connection"`
	Cache      CacheConfig                       `mapstructure:"cache" yaml:"cache"`
}

// Default returns the default configuration: v1 on www.openml.org without
// fallback, a local v2 server, the human retry policy and a one week file
// cache in DefaultCacheDir.
func Default() Config {
	return Config{
		APIVersion: resource.V1,
		APIs: map[resource.APIVersion]APIConfig{
			resource.V1: {
				Server:   "https://www.openml.org/",
				BasePath: "api/v1/xml/",
			},
			resource.V2: {
				Server: "http://localhost:8002/",
			},
		},
		Connection: ConnectionConfig{
			Retries:     client.RetryConfigForPolicy(client.PolicyHuman).DefaultRetries,
			RetryPolicy: client.PolicyHuman,
			Timeout:     10 * time.Second,
		},
		Cache: CacheConfig{
			Dir:     DefaultCacheDir(),
			TTL:     cache.DefaultTTL,
			Backend: CacheBackendFile,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
	}
}

// DefaultCacheDir resolves the cache root: $OPENML_CACHE_DIR, ~/.openml
// outside linux, $XDG_CACHE_HOME/openml, or ~/.cache/openml.
func DefaultCacheDir() string {
	if dir, ok := os.LookupEnv("OPENML_CACHE_DIR"); ok {
		return dir
	}
	if runtime.GOOS != "linux" {
		return filepath.Join("~", ".openml")
	}
	if xdg, ok := os.LookupEnv("XDG_CACHE_HOME"); ok {
		return filepath.Join(xdg, "openml")
	}
	return filepath.Join("~", ".cache", "openml")
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.APIs = make(map[resource.APIVersion]APIConfig, len(c.APIs))
	for version, api := range c.APIs {
		out.APIs[version] = api
	}
	return out
}

// Versions returns the API versions in use, preferred first.
func (c Config) Versions() []resource.APIVersion {
	if c.FallbackAPIVersion == "" {
		return []resource.APIVersion{c.APIVersion}
	}
	return []resource.APIVersion{c.APIVersion, c.FallbackAPIVersion}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if _, err := resource.ParseAPIVersion(string(c.APIVersion)); err != nil {
		return fmt.Errorf("api_version: %w", err)
	}
	if c.FallbackAPIVersion != "" {
		if _, err := resource.ParseAPIVersion(string(c.FallbackAPIVersion)); err != nil {
			return fmt.Errorf("fallback_api_version: %w", err)
		}
		if c.FallbackAPIVersion == c.APIVersion {
			return fmt.Errorf("fallback_api_version must differ from api_version (both %s)", c.APIVersion)
		}
	}

	for _, version := range c.Versions() {
		api, ok := c.APIs[version]
		if !ok {
			return fmt.Errorf("apis.%s is not configured", version)
		}
		if api.Server == "" {
			return fmt.Errorf("apis.%s.server is required", version)
		}
	}

	if c.Connection.Retries < 0 {
		return fmt.Errorf("connection.retries must be >= 0 (got %d)", c.Connection.Retries)
	}
	if !c.Connection.RetryPolicy.Valid() {
		return fmt.Errorf("connection.retry_policy: unknown retry policy %q", c.Connection.RetryPolicy)
	}
	if c.Connection.Timeout <= 0 {
		return fmt.Errorf("connection.timeout must be positive (got %s)", c.Connection.Timeout)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive (got %s)", c.Cache.TTL)
	}
	switch c.Cache.Backend {
	case CacheBackendFile:
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the file backend")
		}
	case CacheBackendRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q (got %q)", CacheBackendFile, CacheBackendRedis, c.Cache.Backend)
	}

	return nil
}
