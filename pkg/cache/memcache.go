package cache

import (
	"context"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
)

type memcacheCache struct {
	client     *memcache.Client
	expiration int32
}

func (m *memcacheCache) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting from memcache: %w", err)
	}
	return item.Value, nil
}

func (m *memcacheCache) Set(ctx context.Context, key string, value []byte) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: m.expiration,
	})
	if err != nil {
		return fmt.Errorf("error setting to memcache: %w", err)
	}
	return nil
}

// NewMemcache wraps a memcache client. expirationSeconds of 0 means
// no expiry.
func NewMemcache(client *memcache.Client, expirationSeconds int32) Cache {
	return &memcacheCache{
		client:     client,
		expiration: expirationSeconds,
	}
}
