package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisStore returns a Redis-backed Store. A zero baseTTL keeps values forever;
// otherwise every write expires after baseTTL plus up to five minutes of jitter.
func NewRedisStore(client *redis.Client, prefix string, baseTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		baseTTL: baseTTL,
	}
}

type RedisStore struct {
	client  *redis.Client
	prefix  string
	baseTTL time.Duration
}

func (r RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.redisKey(key), value, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r RedisStore) ttl() time.Duration {
	if r.baseTTL <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	return r.baseTTL + jitter
}

func (r RedisStore) redisKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}
