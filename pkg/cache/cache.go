// Package cache is a typed cache over the kv store. Values are encoded with
// sonic and every key is namespaced so unrelated caches can share one store.
//
//	slugs := cache.NewCache(kvClient, "slug")
//	id, err := cache.GetOrSet(ctx, slugs, "holiday", func() (string, error) {
//		return lookupSlug(ctx, "holiday")
//	}, time.Hour)
//
// A miss is reported as ErrMiss. Store failures on the read path of GetOrSet
// fall through to the getter: the cache is never the source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

// ErrMiss reports a key that is not cached.
var ErrMiss = errors.New("cache miss")

// Cache is a namespaced view of a kv store.
type Cache struct {
	kvStore   kv.KVStore
	namespace string
}

// NewCache returns a cache whose keys are prefixed with namespace.
func NewCache(kvStore kv.KVStore, namespace string) *Cache {
	return &Cache{
		kvStore:   kvStore,
		namespace: namespace,
	}
}

func (c *Cache) key(k string) string {
	if c.namespace == "" {
		return k
	}

	return c.namespace + ":" + k
}

// Get decodes the value stored under key.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, c.key(key))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return zero, ErrMiss
	}

	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set encodes value under key; ttl <= 0 keeps it until evicted.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.key(key), data, ttl)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kvStore.Delete(ctx, c.key(key))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil
	}

	return err
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, c.key(key))
}

// GetOrSet returns the cached value or computes, stores and returns it.
// Getter errors are returned as is and nothing is cached.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	value, err := Get[T](ctx, c, key)
	if err == nil {
		return value, nil
	}

	if !errors.Is(err, ErrMiss) {
		nlog.Logger().Warn().Err(err).Str("key", c.key(key)).Msg("cache read failed")
	}

	value, err = getter()
	if err != nil {
		return value, err
	}

	if setErr := Set(ctx, c, key, value, ttl); setErr != nil {
		nlog.Logger().Warn().Err(setErr).Str("key", c.key(key)).Msg("cache write failed")
	}

	return value, nil
}

// Clear removes every key of the namespace.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.kvStore.Keys(ctx, c.key("*"))
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil && !errors.Is(delErr, kv.ErrKeyNotFound) {
			return delErr
		}
	}

	return nil
}
