package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists cache entries.
// Implementations must be safe for concurrent use, also by several processes
// sharing the same backing store. A Read never observes a partially written
// entry.
type Store interface {
	// Name identifies the store in metrics ("file", "redis").
	Name() string

	// Read returns the entry stored under key.
	// Returns ErrCacheMiss if there is none and ErrInvalidEntry if it is
	// malformed.
	Read(ctx context.Context, key Key) (*Entry, error)

	// Write stores entry under key, replacing any previous entry.
	Write(ctx context.Context, key Key, entry *Entry) error

	// Delete removes the entry stored under key. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, key Key) error
}

// Pinger is implemented by stores that can report whether their backing
// storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
