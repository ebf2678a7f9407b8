package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips the test if none is
// running. The integration suite starts a container instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewRedisStore(client, time.Hour)
	if store == nil {
		t.Fatal("NewRedisStore returned nil")
	}
	if store.redis != client {
		t.Error("RedisStore redis client not set correctly")
	}
	if store.Name() != "redis" {
		t.Errorf("Name() = %s, want redis", store.Name())
	}
}

func TestRedisStore_Ping(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, time.Hour)

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	client.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded on closed client")
	}
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil, 0)
}

func TestRedisStore_WriteAndRead(t *testing.T) {
	client := setupTestRedis(t)
	testRedisRoundTrip(t, client)
}

func TestRedisStore_Expiry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	key := Key("org/openml/www/task/9")

	if err := store.Write(ctx, key, testEntry("x")); err != nil {
		t.Fatal(err)
	}

	ttl, err := client.TTL(ctx, redisKey(key)).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("redis TTL = %v, want (0, 1m]", ttl)
	}
}

func TestRedisStore_Incomplete(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client, 0)
	ctx := context.Background()
	key := Key("org/openml/www/task/10")

	client.HSet(ctx, redisKey(key), redisFieldMeta, "{}")

	if _, err := store.Read(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("got %v, want ErrInvalidEntry", err)
	}
}

// testRedisRoundTrip runs the store contract against a live Redis.
func testRedisRoundTrip(t *testing.T, client *redis.Client) {
	t.Helper()

	clock := newFakeClock()
	c, err := New(NewRedisStore(client, 0), time.Second, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	key, _ := NewKey("https://test.openml.org/api/v1/xml/task/31", nil)

	if _, err := c.Load(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("empty store: got %v, want ErrCacheMiss", err)
	}

	if err := c.Save(ctx, key, testEntry("<xml/>")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := c.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got.Body) != "<xml/>" || got.StatusCode != 200 || got.Reason != "OK" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Headers.Get("Content-Type") != "text/xml" {
		t.Errorf("Content-Type = %q", got.Headers.Get("Content-Type"))
	}

	clock.Advance(2 * time.Second)
	if _, err := c.Load(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired entry: got %v, want ErrCacheMiss", err)
	}

	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := c.Store().Read(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("after invalidate: got %v, want ErrCacheMiss", err)
	}
}
