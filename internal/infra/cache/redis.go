package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// opTimeout bounds a single redis round trip. The cache contract has no
// context, so a slow redis must degrade to a miss rather than stall reads.
const opTimeout = 250 * time.Millisecond

// Redis is a JSON-encoded TTL cache in a shared redis. Failures are logged
// and reported as misses.
type Redis[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates a cache that namespaces its keys under prefix.
func NewRedis[T any](client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Redis[T] {
	return &Redis[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// NewRedisClient dials addr and pings it once.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (r *Redis[T]) key(k string) string {
	return r.prefix + ":" + k
}

func (r *Redis[T]) Get(key string) (T, bool) {
	var zero T
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false
	}
	if err != nil {
		r.logger.Warn("redis get failed", zap.String("key", r.key(key)), zap.Error(err))
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		r.logger.Warn("redis entry undecodable", zap.String("key", r.key(key)), zap.Error(err))
		return zero, false
	}
	return v, true
}

func (r *Redis[T]) Set(key string, value T) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("redis entry unencodable", zap.String("key", r.key(key)), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(key), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("redis set failed", zap.String("key", r.key(key)), zap.Error(err))
	}
}

func (r *Redis[T]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.logger.Warn("redis del failed", zap.String("key", r.key(key)), zap.Error(err))
	}
}
