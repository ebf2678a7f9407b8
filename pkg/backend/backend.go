// Package backend assembles an OpenML backend from a config.Config: one
// response cache, one transport per API version in use, and one endpoint
// per resource type. When a fallback version is configured every endpoint
// is a fallback.Proxy over the preferred and the fallback version.
//
// Usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	b, err := backend.Build(cfg)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	resp, err := b.Task().Get(ctx, 31)
package backend

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Sternrassler/openml-client/pkg/cache"
	"github.com/Sternrassler/openml-client/pkg/client"
	"github.com/Sternrassler/openml-client/pkg/config"
	"github.com/Sternrassler/openml-client/pkg/fallback"
	"github.com/Sternrassler/openml-client/pkg/logging"
	"github.com/Sternrassler/openml-client/pkg/resource"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Backend gives access to every resource type. It is immutable; WithConfig
// and WithValue build new backends.
type Backend struct {
	config     config.Config
	cache      *cache.Cache
	transports map[resource.APIVersion]*client.Client
	resources  map[resource.ResourceType]resource.Endpoint

	// redis is closed by Close when Build created it.
	redis *redis.Client

	opts   []Option
	logger zerolog.Logger
}

type options struct {
	httpClient  *http.Client
	logger      *zerolog.Logger
	redisClient *redis.Client
	backoff     retryablehttp.Backoff
	clock       func() time.Time
}

// Option configures Build.
type Option func(*options)

// WithHTTPClient sets the HTTP client of every transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithLogger sets the logger of every component.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithRedisClient sets the client of the redis cache backend. The caller
// keeps ownership; Close does not close it.
func WithRedisClient(redisClient *redis.Client) Option {
	return func(o *options) {
		o.redisClient = redisClient
	}
}

// WithBackoff replaces the retry policy backoff (for testing).
func WithBackoff(backoff retryablehttp.Backoff) Option {
	return func(o *options) {
		o.backoff = backoff
	}
}

// WithClock replaces the cache clock (for testing).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// Build validates cfg and assembles a backend. cfg is copied; later changes
// to it do not affect the backend.
func Build(cfg config.Config, opts ...Option) (*Backend, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.NewLogger("backend")
	if o.logger != nil {
		logger = *o.logger
	}

	b := &Backend{
		config:     cfg,
		transports: make(map[resource.APIVersion]*client.Client, 2),
		resources:  make(map[resource.ResourceType]resource.Endpoint, len(resource.ResourceTypes())),
		opts:       opts,
		logger:     logger,
	}

	if err := b.buildCache(o); err != nil {
		b.Close()
		return nil, err
	}

	for _, version := range cfg.Versions() {
		api := cfg.APIs[version]
		transport, err := client.New(client.Config{
			Version:    string(version),
			Server:     api.Server,
			BasePath:   api.BasePath,
			APIKey:     api.APIKey,
			Timeout:    cfg.Connection.Timeout,
			Retries:    cfg.Connection.Retries,
			Policy:     cfg.Connection.RetryPolicy,
			Cache:      b.cache,
			Logger:     o.logger,
			HTTPClient: o.httpClient,
			Backoff:    o.backoff,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("create %s transport: %w", version, err)
		}
		b.transports[version] = transport
	}

	for _, rt := range resource.ResourceTypes() {
		endpoint, err := b.buildEndpoint(rt, o)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.resources[rt] = endpoint
	}

	b.logger.Debug().
		Str("api_version", string(cfg.APIVersion)).
		Str("fallback_api_version", string(cfg.FallbackAPIVersion)).
		Str("cache_backend", cfg.Cache.Backend).
		Str("cache_dir", b.cache.Dir()).
		Msg("Backend built")

	return b, nil
}

// buildCache creates the response cache shared by all transports.
func (b *Backend) buildCache(o options) error {
	cfg := b.config.Cache

	var cacheOpts []cache.Option
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
	}
	if o.logger != nil {
		cacheOpts = append(cacheOpts, cache.WithLogger(*o.logger))
	}

	switch cfg.Backend {
	case config.CacheBackendRedis:
		redisClient := o.redisClient
		if redisClient == nil {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			b.redis = redisClient
		}
		store := cache.NewRedisStore(redisClient, cfg.TTL)
		c, err := cache.New(store, cfg.TTL, append(cacheOpts, cache.WithDir(cfg.Dir))...)
		if err != nil {
			return fmt.Errorf("create cache: %w", err)
		}
		if c.Dir() != "" {
			if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
				return fmt.Errorf("create cache directory: %w", err)
			}
		}
		b.cache = c
	default:
		c, err := cache.NewFileCache(cfg.Dir, cfg.TTL, cacheOpts...)
		if err != nil {
			return fmt.Errorf("create cache: %w", err)
		}
		b.cache = c
	}
	return nil
}

// buildEndpoint creates the endpoint of rt, wrapped in a fallback proxy
// when a fallback version is configured.
func (b *Backend) buildEndpoint(rt resource.ResourceType, o options) (resource.Endpoint, error) {
	var endpointOpts []resource.Option
	if o.logger != nil {
		endpointOpts = append(endpointOpts, resource.WithLogger(*o.logger))
	}

	primary, err := resource.New(b.config.APIVersion, rt, b.transports[b.config.APIVersion], endpointOpts...)
	if err != nil {
		return nil, fmt.Errorf("create %s %s endpoint: %w", b.config.APIVersion, rt, err)
	}
	if b.config.FallbackAPIVersion == "" {
		return primary, nil
	}

	secondary, err := resource.New(b.config.FallbackAPIVersion, rt, b.transports[b.config.FallbackAPIVersion], endpointOpts...)
	if err != nil {
		return nil, fmt.Errorf("create %s %s endpoint: %w", b.config.FallbackAPIVersion, rt, err)
	}

	var proxyOpts []fallback.Option
	if o.logger != nil {
		proxyOpts = append(proxyOpts, fallback.WithLogger(*o.logger))
	}
	proxy, err := fallback.New(primary, secondary, proxyOpts...)
	if err != nil {
		return nil, err
	}
	return proxy, nil
}

// Config returns a copy of the configuration the backend was built from.
func (b *Backend) Config() config.Config {
	return b.config.Clone()
}

// Cache returns the shared response cache.
func (b *Backend) Cache() *cache.Cache {
	return b.cache
}

// Transport returns the transport of version, or nil when the version is
// not in use.
func (b *Backend) Transport(version resource.APIVersion) *client.Client {
	return b.transports[version]
}

// Resource returns the endpoint of rt, or nil for an unknown type.
func (b *Backend) Resource(rt resource.ResourceType) resource.Endpoint {
	return b.resources[rt]
}

func (b *Backend) Dataset() resource.Endpoint { return b.resources[resource.Dataset] }
func (b *Backend) Task() resource.Endpoint    { return b.resources[resource.Task] }
func (b *Backend) Flow() resource.Endpoint    { return b.resources[resource.Flow] }
func (b *Backend) Run() resource.Endpoint     { return b.resources[resource.Run] }
func (b *Backend) Setup() resource.Endpoint   { return b.resources[resource.Setup] }
func (b *Backend) Study() resource.Endpoint   { return b.resources[resource.Study] }
func (b *Backend) User() resource.Endpoint    { return b.resources[resource.User] }

func (b *Backend) Evaluation() resource.Endpoint {
	return b.resources[resource.Evaluation]
}

func (b *Backend) EvaluationMeasure() resource.Endpoint {
	return b.resources[resource.EvaluationMeasure]
}

func (b *Backend) EstimationProcedure() resource.Endpoint {
	return b.resources[resource.EstimationProcedure]
}

func (b *Backend) TaskType() resource.Endpoint {
	return b.resources[resource.TaskType]
}

// WithConfig builds a new backend from cfg with the options of b. b is
// left unchanged.
func (b *Backend) WithConfig(cfg config.Config) (*Backend, error) {
	return Build(cfg, b.opts...)
}

// WithValue builds a new backend whose configuration differs from b's in
// the value at keyPath (see config.With). b is left unchanged.
func (b *Backend) WithValue(keyPath string, value interface{}) (*Backend, error) {
	cfg, err := config.With(b.config, keyPath, value)
	if err != nil {
		return nil, err
	}
	return b.WithConfig(cfg)
}

// Close releases the Redis connection pool created by Build, if any.
func (b *Backend) Close() error {
	if b.redis == nil {
		return nil
	}
	return b.redis.Close()
}
