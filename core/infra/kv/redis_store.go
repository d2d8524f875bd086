package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowgate/flowgate/core/infra/redisutil"
)

const (
	defaultRedisURL       = "redis://localhost:6379"
	defaultRedisOpTimeout = 2 * time.Second
)

// consumeScript reads and deletes a key in one atomic round trip. Two callers
// racing on the same token get at most one non-empty reply.
const consumeScript = `
local val = redis.call("GET", KEYS[1])
if not val then
  return false
end
redis.call("DEL", KEYS[1])
return val
`

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed store from a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		url = defaultRedisURL
	}
	client, err := redisutil.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	cctx, cancel := opContext(ctx)
	defer cancel()
	val, err := s.client.Get(cctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cctx, cancel := opContext(ctx)
	defer cancel()
	return s.client.Set(cctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	cctx, cancel := opContext(ctx)
	defer cancel()
	return s.client.Del(cctx, key).Err()
}

func (s *RedisStore) ConsumeOnce(ctx context.Context, key string) ([]byte, error) {
	cctx, cancel := opContext(ctx)
	defer cancel()
	res, err := s.client.Eval(cctx, consumeScript, []string{key}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	payload, ok := res.(string)
	if !ok || payload == "" {
		return nil, ErrNotFound
	}
	return []byte(payload), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	cctx, cancel := opContext(ctx)
	defer cancel()
	return s.client.Ping(cctx).Err()
}

// Close shuts down the Redis client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), defaultRedisOpTimeout)
}
