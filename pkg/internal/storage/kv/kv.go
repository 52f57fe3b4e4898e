// Package kv provides the key/value stores behind sharevault's caches:
// slug lookups, geo lookups and cached API responses. Nothing stored here is
// authoritative; every value can be rebuilt from the database.
package kv

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/yeisme/sharevault/pkg/configs"
)

// ErrKeyNotFound is returned by Get for missing or expired keys.
var ErrKeyNotFound = errors.New("key not found")

// Client is the shared store handle.
type Client struct {
	KVStore
	kind configs.KVType
}

// Type reports the backend in use.
func (c *Client) Type() configs.KVType {
	return c.kind
}

// KVStore is implemented by every backend.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; ttl <= 0 keeps it until deleted or evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Keys lists keys matching a glob pattern; empty matches everything.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// KVFactory builds a backend from the kv section.
type KVFactory func(ctx context.Context, cfg *configs.KVConfig) (KVStore, error)

var kvFactories = make(map[configs.KVType]KVFactory)

// RegisterKVFactory registers a backend constructor.
func RegisterKVFactory(kvType configs.KVType, factory KVFactory) {
	kvFactories[kvType] = factory
}

// GetRegisteredKVTypes lists the compiled-in backends.
func GetRegisteredKVTypes() []configs.KVType {
	types := make([]configs.KVType, 0, len(kvFactories))
	for kvType := range kvFactories {
		types = append(types, kvType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// NewKVStore builds the backend for cfg.Type.
func NewKVStore(ctx context.Context, cfg *configs.KVConfig) (KVStore, error) {
	factory, exists := kvFactories[cfg.Type]
	if !exists {
		return nil, fmt.Errorf("unsupported KV type: %s", cfg.Type)
	}

	return factory(ctx, cfg)
}

// NewKVClient builds the store described by cfg.
func NewKVClient(ctx context.Context, cfg *configs.KVConfig) (*Client, error) {
	store, err := NewKVStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{KVStore: store, kind: cfg.Type}, nil
}

// matchKey applies redis-like glob matching for backends without native patterns.
func matchKey(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	ok, err := path.Match(pattern, key)

	return err == nil && ok
}
