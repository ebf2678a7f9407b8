package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces cache entries in a shared Redis database.
const redisKeyPrefix = "openml:cache:"

// Hash fields of a cached entry.
const (
	redisFieldMeta    = "meta"
	redisFieldHeaders = "headers"
	redisFieldBody    = "body"
)

// RedisStore keeps entries in Redis, one hash per key. Several client
// processes may share it.
type RedisStore struct {
	redis *redis.Client

	// expiry is applied to every written key so Redis reclaims memory of
	// entries nobody refreshes. Zero disables it.
	expiry time.Duration
}

// NewRedisStore creates a new store with Redis backend.
func NewRedisStore(redisClient *redis.Client, expiry time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		expiry: expiry,
	}
}

// Name implements Store.
func (s *RedisStore) Name() string {
	return "redis"
}

// Read implements Store. HGETALL is atomic, so a concurrent Write is either
// fully visible or not at all.
func (s *RedisStore) Read(ctx context.Context, key Key) (*Entry, error) {
	fields, err := s.redis.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	m, okMeta := fields[redisFieldMeta]
	h, okHeaders := fields[redisFieldHeaders]
	b, okBody := fields[redisFieldBody]
	if !okMeta || !okHeaders || !okBody {
		return nil, fmt.Errorf("%w: incomplete hash", ErrInvalidEntry)
	}

	return decodeEntry(artifacts{meta: []byte(m), headers: []byte(h), body: []byte(b)})
}

// Write implements Store. The replace runs in a MULTI/EXEC transaction.
func (s *RedisStore) Write(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	a, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	k := redisKey(key)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k,
			redisFieldMeta, a.meta,
			redisFieldHeaders, a.headers,
			redisFieldBody, a.body,
		)
		if s.expiry > 0 {
			pipe.Expire(ctx, k, s.expiry)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func redisKey(key Key) string {
	return redisKeyPrefix + string(key)
}
