package kv_test

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
)

func newStore(t testing.TB, kvType configs.KVType) kv.KVStore {
	t.Helper()

	cfg := configs.Defaults().KV
	cfg.Type = kvType
	cfg.Groupcache.Name = fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())

	store, err := kv.NewKVStore(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestLocalBackends(t *testing.T) {
	for _, kvType := range []configs.KVType{configs.KVTypeMemory, configs.KVTypeGroupcache} {
		t.Run(string(kvType), func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t, kvType)

			_, err := store.Get(ctx, "slug:missing")
			assert.ErrorIs(t, err, kv.ErrKeyNotFound)

			require.NoError(t, store.Set(ctx, "slug:team", []byte("01HSHARE1"), 0))
			v, err := store.Get(ctx, "slug:team")
			require.NoError(t, err)
			assert.Equal(t, "01HSHARE1", string(v))

			// overwrite must not serve the previous value
			require.NoError(t, store.Set(ctx, "slug:team", []byte("01HSHARE2"), 0))
			v, err = store.Get(ctx, "slug:team")
			require.NoError(t, err)
			assert.Equal(t, "01HSHARE2", string(v))

			require.NoError(t, store.Delete(ctx, "slug:team"))
			ok, err := store.Exists(ctx, "slug:team")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTTLExpiry(t *testing.T) {
	for _, kvType := range []configs.KVType{configs.KVTypeMemory, configs.KVTypeGroupcache} {
		t.Run(string(kvType), func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t, kvType)

			require.NoError(t, store.Set(ctx, "geo:10.0.0.1", []byte(`{"country":"DE"}`), 100*time.Millisecond))

			ok, err := store.Exists(ctx, "geo:10.0.0.1")
			require.NoError(t, err)
			assert.True(t, ok)

			time.Sleep(150 * time.Millisecond)

			_, err = store.Get(ctx, "geo:10.0.0.1")
			assert.ErrorIs(t, err, kv.ErrKeyNotFound)
		})
	}
}

func TestKeysGlob(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, configs.KVTypeMemory)

	for _, k := range []string{"slug:a", "slug:b", "geo:1"} {
		require.NoError(t, store.Set(ctx, k, []byte("x"), 0))
	}

	keys, err := store.Keys(ctx, "slug:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"slug:a", "slug:b"}, keys)

	all, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRegisteredTypes(t *testing.T) {
	types := kv.GetRegisteredKVTypes()
	assert.Contains(t, types, configs.KVTypeMemory)
	assert.Contains(t, types, configs.KVTypeGroupcache)
}

// Optional: enable with ENABLE_REDIS_TEST=1 and REDIS_ADDR.
func TestRedisBackend(t *testing.T) {
	if os.Getenv("ENABLE_REDIS_TEST") == "" {
		t.Skip("set ENABLE_REDIS_TEST=1 to enable")
	}

	cfg := configs.Defaults().KV
	cfg.Type = configs.KVTypeRedis

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}

	store, err := kv.NewKVStore(context.Background(), &cfg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "sv-test", []byte("1"), time.Minute))
	v, err := store.Get(ctx, "sv-test")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
	require.NoError(t, store.Delete(ctx, "sv-test"))
}

func BenchmarkMemoryKV(b *testing.B) {
	store := newStore(b, configs.KVTypeMemory)
	ctx := context.Background()
	payload := make([]byte, 1024)

	b.ReportAllocs()

	for i := 0; b.Loop(); i++ {
		key := fmt.Sprintf("bench-%d", i)
		if err := store.Set(ctx, key, payload, time.Minute); err != nil {
			b.Fatal(err)
		}

		if _, err := store.Get(ctx, key); err != nil {
			b.Fatal(err)
		}
	}
}
