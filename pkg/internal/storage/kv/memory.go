package kv

import (
	"context"
	"sync"
	"time"

	"github.com/yeisme/sharevault/pkg/configs"
)

// MemoryKV keeps values in process. Expired values are dropped on read.
type MemoryKV struct {
	data sync.Map
}

// NewMemoryKV needs no configuration.
func NewMemoryKV(_ context.Context, _ *configs.KVConfig) (KVStore, error) {
	return &MemoryKV{}, nil
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	raw, exists := m.data.Load(key)
	if !exists {
		return nil, ErrKeyNotFound
	}

	val, live, err := openTTL(raw.([]byte), time.Now())
	if err != nil {
		return nil, err
	}

	if !live {
		m.data.Delete(key)
		return nil, ErrKeyNotFound
	}

	out := make([]byte, len(val))
	copy(out, val)

	return out, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := sealTTL(value, ttl, time.Now())
	if err != nil {
		return err
	}

	data := make([]byte, len(encoded))
	copy(data, encoded)
	m.data.Store(key, data)

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := m.Get(ctx, key); err != nil {
		if err == ErrKeyNotFound {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	m.data.Range(func(key, _ any) bool {
		if k, ok := key.(string); ok && matchKey(pattern, k) {
			keys = append(keys, k)
		}

		return true
	})

	return keys, nil
}

func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(configs.KVTypeMemory, NewMemoryKV)
}
