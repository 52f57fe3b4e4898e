package objstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewFsStore(afero.NewMemMapFs())
	key := objstore.ShareKey("01HSHARE", "file-1")

	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain"))

	rc, info, err := store.Get(ctx, key)
	require.NoError(t, err)

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(body))
	assert.EqualValues(t, 5, info.Size)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting twice is fine")

	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := objstore.NewFsStore(afero.NewMemMapFs())

	err := store.Put(context.Background(), "shares/../../etc/passwd", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, objstore.ErrInvalidKey)
}

func TestLocalStoreShortWrite(t *testing.T) {
	store := objstore.NewFsStore(afero.NewMemMapFs())

	err := store.Put(context.Background(), "shares/a/b", strings.NewReader("abc"), 10, "")
	require.Error(t, err)

	_, err = store.Stat(context.Background(), "shares/a/b")
	assert.ErrorIs(t, err, objstore.ErrNotFound, "partial objects are not left behind")
}

// flakyStore fails the first n Puts.
type flakyStore struct {
	objstore.Store
	failures int32
	calls    atomic.Int32
	bodies   [][]byte
}

func (f *flakyStore) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) error {
	n := f.calls.Add(1)

	b, _ := io.ReadAll(r)
	f.bodies = append(f.bodies, b)

	if n <= f.failures {
		return errors.New("connection reset")
	}

	return f.Store.Put(ctx, key, bytes.NewReader(b), size, ct)
}

func TestRetryReplaysSeekableBody(t *testing.T) {
	inner := &flakyStore{Store: objstore.NewFsStore(afero.NewMemMapFs()), failures: 2}
	store := objstore.WithRetry(inner, objstore.RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	err := store.Put(context.Background(), "shares/s/f", bytes.NewReader([]byte("payload")), 7, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, inner.calls.Load())

	for _, b := range inner.bodies {
		assert.Equal(t, "payload", string(b), "every attempt sees the whole body")
	}
}

func TestRetryExhaustion(t *testing.T) {
	inner := &flakyStore{Store: objstore.NewFsStore(afero.NewMemMapFs()), failures: 10}
	store := objstore.WithRetry(inner, objstore.RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	err := store.Put(context.Background(), "shares/s/f", bytes.NewReader([]byte("x")), 1, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, objstore.ErrUnavailable)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestRetryDoesNotRetryNotFound(t *testing.T) {
	store := objstore.WithRetry(objstore.NewFsStore(afero.NewMemMapFs()), objstore.RetryPolicy{Attempts: 5, Delay: time.Second})

	start := time.Now()
	_, _, err := store.Get(context.Background(), "shares/missing/file")

	assert.ErrorIs(t, err, objstore.ErrNotFound)
	assert.NotErrorIs(t, err, objstore.ErrUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := &flakyStore{Store: objstore.NewFsStore(afero.NewMemMapFs()), failures: 100}
	cb := configs.CircuitBreakerConfig{FailureRate: 0.5, MinRequests: 2, IntervalSeconds: 60, TimeoutSeconds: 60, MaxRequestsInHalf: 1}
	store := objstore.WithBreaker(inner, &cb)

	for range 2 {
		_ = store.Put(context.Background(), "shares/s/f", strings.NewReader("x"), 1, "")
	}

	err := store.Put(context.Background(), "shares/s/f", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, objstore.ErrUnavailable)
	assert.EqualValues(t, 2, inner.calls.Load(), "open breaker short-circuits the backend")
}
