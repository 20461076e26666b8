// Package cache is an optional byte cache in front of the relay
// fetcher. Keys are upstream tile URLs; values are msgpack-encoded
// fetch results produced by pkg/fetch.
package cache

import "context"

type Cache interface {
	// Get returns the cached bytes for key, or nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Nil implements Cache with no-ops.
type Nil struct{}

func (Nil) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}

func (Nil) Set(ctx context.Context, key string, value []byte) error {
	return nil
}
