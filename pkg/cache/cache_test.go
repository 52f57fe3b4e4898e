package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
)

type slugEntry struct {
	ShareID string `json:"share_id"`
	Public  bool   `json:"public"`
}

func newStore(t *testing.T) kv.KVStore {
	t.Helper()

	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestGetMissAndHit(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t), "slug")

	_, err := cache.Get[slugEntry](ctx, c, "holiday")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, cache.Set(ctx, c, "holiday", slugEntry{ShareID: "01J", Public: true}, 0))

	got, err := cache.Get[slugEntry](ctx, c, "holiday")
	require.NoError(t, err)
	assert.Equal(t, slugEntry{ShareID: "01J", Public: true}, got)
}

func TestNamespacesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	slugs := cache.NewCache(store, "slug")
	geo := cache.NewCache(store, "geo")

	require.NoError(t, cache.Set(ctx, slugs, "k", "a", 0))
	require.NoError(t, cache.Set(ctx, geo, "k", "b", 0))

	a, err := cache.Get[string](ctx, slugs, "k")
	require.NoError(t, err)
	b, err := cache.Get[string](ctx, geo, "k")
	require.NoError(t, err)

	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)

	raw, err := store.Get(ctx, "slug:k")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestDeleteMissingKey(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t), "slug")

	require.NoError(t, c.Delete(ctx, "absent"))

	require.NoError(t, cache.Set(ctx, c, "present", 1, 0))
	require.NoError(t, c.Delete(ctx, "present"))

	ok, err := c.Exists(ctx, "present")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetOrSetCallsGetterOnce(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t), "plans")
	calls := 0

	getter := func() ([]int, error) {
		calls++
		return []int{1, 2}, nil
	}

	for range 3 {
		got, err := cache.GetOrSet(ctx, c, "all", getter, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, got)
	}

	assert.Equal(t, 1, calls)
}

func TestGetOrSetGetterErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t), "plans")
	boom := errors.New("db down")

	_, err := cache.GetOrSet(ctx, c, "all", func() (int, error) { return 0, boom }, time.Minute)
	require.ErrorIs(t, err, boom)

	ok, err := c.Exists(ctx, "all")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearOnlyTouchesNamespace(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	slugs := cache.NewCache(store, "slug")
	geo := cache.NewCache(store, "geo")

	require.NoError(t, cache.Set(ctx, slugs, "a", 1, 0))
	require.NoError(t, cache.Set(ctx, slugs, "b", 2, 0))
	require.NoError(t, cache.Set(ctx, geo, "a", 3, 0))

	require.NoError(t, slugs.Clear(ctx))

	_, err := cache.Get[int](ctx, slugs, "a")
	require.ErrorIs(t, err, cache.ErrMiss)

	v, err := cache.Get[int](ctx, geo, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestTTLExpires(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t), "geo")

	require.NoError(t, cache.Set(ctx, c, "1.2.3.4", "DE", time.Second))
	time.Sleep(2100 * time.Millisecond)

	_, err := cache.Get[string](ctx, c, "1.2.3.4")
	require.ErrorIs(t, err, cache.ErrMiss)
}
