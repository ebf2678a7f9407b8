package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is one week.
const DefaultTTL = 7 * 24 * time.Hour

// Cache maps request identities to stored responses with time-based expiry.
// Expired entries are reported as misses but not deleted; the next Save with
// the same key overwrites them.
type Cache struct {
	store  Store
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithDir sets the cache directory reported by Dir. File caches set it to
// their root; other stores need it for downloads.
func WithDir(dir string) Option {
	return func(c *Cache) {
		c.dir = dir
	}
}

// New creates a cache over store.
func New(store Store, ttl time.Duration, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive (got %s)", ttl)
	}

	c := &Cache{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.dir != "" {
		dir, err := ExpandHome(c.dir)
		if err != nil {
			return nil, err
		}
		c.dir = dir
	}

	return c, nil
}

// NewFileCache creates a cache stored below dir.
func NewFileCache(dir string, ttl time.Duration, opts ...Option) (*Cache, error) {
	store, err := NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	return New(store, ttl, append([]Option{WithDir(store.Root())}, opts...)...)
}

// Key derives the cache key for a request. See NewKey.
func (c *Cache) Key(rawURL string, params url.Values) (Key, error) {
	return NewKey(rawURL, params)
}

// Dir returns the cache directory, or "" if none is configured.
func (c *Cache) Dir() string {
	return c.dir
}

// TTL returns the validity window of entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Store returns the backing store.
func (c *Cache) Store() Store {
	return c.store
}

// Load retrieves a valid entry.
// Returns ErrCacheMiss if the entry doesn't exist, is malformed or expired.
func (c *Cache) Load(ctx context.Context, key Key) (*Entry, error) {
	entry, err := c.store.Read(ctx, key)
	switch {
	case errors.Is(err, ErrCacheMiss):
		CacheMisses.WithLabelValues(missAbsent).Inc()
		return nil, ErrCacheMiss
	case errors.Is(err, ErrInvalidEntry):
		CacheMisses.WithLabelValues(missInvalid).Inc()
		c.logger.Warn().Err(err).Str("key", string(key)).Msg("Ignoring malformed cache entry")
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	if entry.IsExpired(c.now(), c.ttl) {
		CacheMisses.WithLabelValues(missExpired).Inc()
		c.logger.Debug().
			Str("key", string(key)).
			Time("stored_at", entry.StoredAt).
			Msg("Cache entry expired")
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(c.store.Name()).Inc()
	c.logger.Debug().
		Str("key", string(key)).
		Dur("ttl", entry.TTL(c.now(), c.ttl)).
		Msg("Cache hit")

	return entry, nil
}

// Save stores entry under key, stamping it with the current time. The caller's
// entry is not modified.
func (c *Cache) Save(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	stored := *entry
	stored.StoredAt = c.now()

	if err := c.store.Write(ctx, key, &stored); err != nil {
		CacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("save %s: %w", key, err)
	}

	CacheStoredBytes.WithLabelValues(c.store.Name()).Add(float64(len(stored.Body)))
	c.logger.Debug().
		Str("key", string(key)).
		Int("bytes", len(stored.Body)).
		Msg("Cached response")

	return nil
}

// Invalidate removes the entry stored under key so the next access misses
// regardless of its TTL.
func (c *Cache) Invalidate(ctx context.Context, key Key) error {
	if err := c.store.Delete(ctx, key); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

// Ping checks that the backing store is reachable. Stores without a health
// check are assumed healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if p, ok := c.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
