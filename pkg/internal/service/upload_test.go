package service_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
	"github.com/yeisme/sharevault/pkg/internal/testkit"
	"github.com/yeisme/sharevault/pkg/internal/types"
)

// abortingParts serves its parts and then fails like a dropped connection.
type abortingParts struct {
	parts service.SliceParts
}

func (a *abortingParts) NextPart() (*service.FilePart, error) {
	if len(a.parts) == 0 {
		return nil, io.ErrUnexpectedEOF
	}

	return a.parts.NextPart()
}

// flakyStore fails every Put.
type flakyStore struct {
	objstore.Store
	puts atomic.Int64
}

func (f *flakyStore) Put(context.Context, string, io.Reader, int64, string) error {
	f.puts.Add(1)
	return errors.New("connection refused")
}

func objectCount(t *testing.T, env *testkit.Env) int {
	t.Helper()

	n := 0
	_ = afero.Walk(env.ObjectFS, "shares", func(_ string, info fs.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}

		return nil
	})

	return n
}

func loadShare(t *testing.T, env *testkit.Env, id string) model.Share {
	t.Helper()

	var share model.Share
	require.NoError(t, env.DB.Unscoped().Take(&share, "id = ?", id).Error)

	return share
}

func TestUploadCommitsTheWholeHold(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	intent := env.Intent(t, "alice", share.ID, 3, 10)
	assert.EqualValues(t, 10, env.Used(t, "alice"))

	parts := service.SliceParts{
		testkit.SizedPart("a.bin", service.MiB+1),
		testkit.SizedPart("b.bin", service.MiB/2),
		testkit.SizedPart("../c.bin", 10),
	}

	res, err := env.Uploads.Upload(ctx, intent.Signature, &parts)
	require.NoError(t, err)

	assert.EqualValues(t, 10, res.ChargedMB)
	assert.EqualValues(t, 10, env.Used(t, "alice"), "the hold is not shrunk to the measured size")
	require.Len(t, res.Files, 3)
	assert.Equal(t, "c.bin", res.Files[2].FileName)

	reservation, err := env.Ledger.Reservation(ctx, intent.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCommitted, reservation.Status)
	assert.EqualValues(t, 10, reservation.ChargedMB)

	charges := map[string]int64{}

	var sum int64
	for _, f := range res.Files {
		var row model.File
		require.NoError(t, env.DB.Take(&row, "id = ?", f.ID).Error)

		charges[row.FileName] = row.QuotaMB
		sum += row.QuotaMB
		assert.Len(t, row.Hash, 64)
	}

	assert.Equal(t, map[string]int64{"a.bin": 2, "b.bin": 0, "c.bin": 8}, charges, "the last file carries the unused part of the hold")
	assert.EqualValues(t, res.ChargedMB, sum, "per-file charges add up to the commit")

	row := loadShare(t, env, share.ID)
	assert.EqualValues(t, 3, row.FileCount)
	assert.EqualValues(t, service.MiB+1+service.MiB/2+10, row.Size)
	assert.Equal(t, 3, objectCount(t, env))

	status, err := env.Uploads.IntentStatus(ctx, "alice", intent.ID)
	require.NoError(t, err)
	assert.Equal(t, types.UploadCommitted, status.State)

	_, err = env.Uploads.Upload(ctx, intent.Signature, testkit.Parts("again.txt", "x"))
	assert.ErrorIs(t, err, service.ErrTokenAlreadyUsed)
}

func TestAbortedUploadReleasesTheFullHold(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	require.NoError(t, env.Ledger.Adjust(ctx, "alice", 7))

	intent := env.Intent(t, "alice", share.ID, 3, 50)
	assert.EqualValues(t, 57, env.Used(t, "alice"))

	body := &abortingParts{parts: service.SliceParts{
		testkit.SizedPart("one.bin", 2*service.MiB),
		testkit.SizedPart("two.bin", 2*service.MiB),
	}}

	_, err := env.Uploads.Upload(ctx, intent.Signature, body)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.EqualValues(t, 7, env.Used(t, "alice"), "back to the pre-reservation value")
	assert.Zero(t, loadShare(t, env, share.ID).FileCount)
	assert.Zero(t, objectCount(t, env), "stored objects are removed")

	res, err := env.Ledger.Reservation(ctx, intent.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationReleased, res.Status)

	status, err := env.Uploads.IntentStatus(ctx, "alice", intent.ID)
	require.NoError(t, err)
	assert.Equal(t, types.UploadReleased, status.State)

	_, err = env.Uploads.Upload(ctx, intent.Signature, testkit.Parts("retry.txt", "x"))
	assert.ErrorIs(t, err, service.ErrTokenAlreadyUsed, "the signature stays spent")
}

func TestUploadLimits(t *testing.T) {
	cases := []struct {
		name  string
		count int
		parts func() *service.SliceParts
		want  error
	}{
		{
			name:  "too many files",
			count: 1,
			parts: func() *service.SliceParts { return testkit.Parts("a.txt", "a", "b.txt", "b") },
			want:  service.ErrUploadLimit,
		},
		{
			name:  "too many bytes",
			count: 2,
			parts: func() *service.SliceParts {
				p := service.SliceParts{testkit.SizedPart("big.bin", service.MiB), testkit.SizedPart("tip.bin", 1)}
				return &p
			},
			want: service.ErrUploadLimit,
		},
		{
			name:  "no files",
			count: 1,
			parts: func() *service.SliceParts { return &service.SliceParts{} },
			want:  service.ErrValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := testkit.New(t)
			env.User(t, "alice")
			share := env.Share(t, "alice", nil)
			intent := env.Intent(t, "alice", share.ID, tc.count, 1)

			_, err := env.Uploads.Upload(context.Background(), intent.Signature, tc.parts())
			require.ErrorIs(t, err, tc.want)

			assert.Zero(t, env.Used(t, "alice"))
			assert.Zero(t, objectCount(t, env))
			assert.Zero(t, loadShare(t, env, share.ID).FileCount)
		})
	}
}

func TestStorageRetryExhaustionReleases(t *testing.T) {
	flaky := &flakyStore{}

	env := testkit.New(t, func(d *service.Deps) {
		flaky.Store = d.Objects
		d.Objects = objstore.WithRetry(flaky, objstore.RetryPolicy{Attempts: 3, Delay: time.Millisecond})
	})
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)
	intent := env.Intent(t, "alice", share.ID, 1, 5)

	_, err := env.Uploads.Upload(context.Background(), intent.Signature, testkit.Parts("a.txt", strings.Repeat("x", 100)))
	require.ErrorIs(t, err, service.ErrStorage)

	status, _ := service.Classify(err)
	assert.Equal(t, 500, status)

	assert.EqualValues(t, 3, flaky.puts.Load())
	assert.Zero(t, env.Used(t, "alice"))
	assert.Zero(t, loadShare(t, env, share.ID).FileCount)
}

func TestSmallUploadKeepsTheDeclaredHold(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	env.Plan(t, "alice", 1000)
	share := env.Share(t, "alice", nil)

	intent := env.Intent(t, "alice", share.ID, 1, 800)

	res, err := env.Uploads.Upload(ctx, intent.Signature, testkit.Parts("a.txt", "hello"))
	require.NoError(t, err)
	assert.EqualValues(t, 800, res.ChargedMB)
	assert.EqualValues(t, 800, env.Used(t, "alice"))

	_, err = env.Tokens.IssueUpload(ctx, service.IssueUploadParams{
		OwnerID: "alice", ShareID: share.ID, ExpectedFileCount: 1, ExpectedFileSizeMB: 300, TTL: time.Hour,
	})
	require.ErrorIs(t, err, service.ErrQuotaExceeded)
	assert.EqualValues(t, 800, env.Used(t, "alice"))

	require.NoError(t, env.Files.DeleteFile(ctx, "alice", res.Files[0].ID))
	assert.Zero(t, env.Used(t, "alice"), "deleting the file frees the whole hold")
}

func TestUploadToDeletedShareReleases(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)
	intent := env.Intent(t, "alice", share.ID, 1, 5)

	require.NoError(t, env.Shares.DeleteShare(ctx, "alice", share.ID))

	_, err := env.Uploads.Upload(ctx, intent.Signature, testkit.Parts("a.txt", "hello"))
	require.ErrorIs(t, err, service.ErrShareNotFound)
	assert.Zero(t, env.Used(t, "alice"))
}

func TestDeleteShareDuringUploadLeavesNothingCharged(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t, testkit.WithPool(t, 4))
	env.User(t, "alice")

	for range 5 {
		share := env.Share(t, "alice", nil)
		intent := env.Intent(t, "alice", share.ID, 2, 3)

		var (
			wg        sync.WaitGroup
			uploadErr error
			deleteErr error
		)

		wg.Add(2)

		go func() {
			defer wg.Done()
			_, uploadErr = env.Uploads.Upload(ctx, intent.Signature, testkit.Parts("a.txt", "alpha", "b.txt", "bravo"))
		}()

		go func() {
			defer wg.Done()
			deleteErr = env.Shares.DeleteShare(ctx, "alice", share.ID)
		}()

		wg.Wait()

		require.NoError(t, deleteErr)
		if uploadErr != nil {
			require.ErrorIs(t, uploadErr, service.ErrShareNotFound)
		}

		var live int64
		require.NoError(t, env.DB.Model(&model.File{}).Where("share_id = ?", share.ID).Count(&live).Error)
		assert.Zero(t, live, "files committed before the delete are deleted with it")
		assert.Zero(t, env.Used(t, "alice"))
	}
}

func TestCanceledUploadReleases(t *testing.T) {
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)
	intent := env.Intent(t, "alice", share.ID, 1, 5)

	ctx, cancel := context.WithCancel(context.Background())

	body := &cancelingReader{cancel: cancel, r: strings.NewReader(strings.Repeat("y", 4096))}
	parts := service.SliceParts{{Name: "slow.txt", Body: body}}

	_, err := env.Uploads.Upload(ctx, intent.Signature, &parts)
	require.ErrorIs(t, err, context.Canceled)

	status, _ := service.Classify(err)
	assert.Equal(t, service.StatusClientClosedRequest, status)
	assert.Zero(t, env.Used(t, "alice"))
}

// cancelingReader cancels its context after the first read.
type cancelingReader struct {
	cancel context.CancelFunc
	r      io.Reader
}

func (c *cancelingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p[:min(len(p), 16)])
	c.cancel()

	return n, err
}

func TestDeleteFileFreesQuota(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	env.User(t, "mallory")
	share := env.Share(t, "alice", nil)
	intent := env.Intent(t, "alice", share.ID, 2, 5)

	parts := service.SliceParts{testkit.SizedPart("a.bin", 2*service.MiB), testkit.SizedPart("b.bin", 10)}
	res, err := env.Uploads.Upload(ctx, intent.Signature, &parts)
	require.NoError(t, err)
	assert.EqualValues(t, 5, env.Used(t, "alice"))

	assert.ErrorIs(t, env.Files.DeleteFile(ctx, "mallory", res.Files[0].ID), service.ErrNotOwner)

	require.NoError(t, env.Files.DeleteFile(ctx, "alice", res.Files[0].ID))
	assert.EqualValues(t, 3, env.Used(t, "alice"))

	row := loadShare(t, env, share.ID)
	assert.EqualValues(t, 1, row.FileCount)
	assert.EqualValues(t, 10, row.Size)

	assert.ErrorIs(t, env.Files.DeleteFile(ctx, "alice", res.Files[0].ID), service.ErrFileNotFound)

	require.NoError(t, env.Shares.DeleteShare(ctx, "alice", share.ID))
	assert.Zero(t, env.Used(t, "alice"))
	assert.Zero(t, objectCount(t, env))
}
