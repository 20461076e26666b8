package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type redisCache struct {
	client     *redis.Client
	expiration time.Duration
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		// Cache miss
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("error getting from redis: %w", err)
	}
	return value, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte) error {
	err := r.client.Set(ctx, key, value, r.expiration).Err()
	if err != nil {
		return fmt.Errorf("error setting to redis: %w", err)
	}
	return nil
}

// NewRedis wraps a redis client. A zero expiration means entries do
// not expire.
func NewRedis(client *redis.Client, expiration time.Duration) Cache {
	return &redisCache{
		client:     client,
		expiration: expiration,
	}
}
