package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the key/value contract consumed by the gateway. Implementations
// must make ConsumeOnce atomic: of N concurrent callers for the same key,
// exactly one receives the value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// ConsumeOnce reads and deletes the key in a single atomic step.
	ConsumeOnce(ctx context.Context, key string) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}
