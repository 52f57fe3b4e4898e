package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/testkit"
)

func issue(t *testing.T, env *testkit.Env, owner, shareID string, sizeMB int64, ttl time.Duration) *model.UploadSignature {
	t.Helper()

	sig, err := env.Tokens.IssueUpload(context.Background(), service.IssueUploadParams{
		OwnerID: owner, ShareID: shareID, ExpectedFileCount: 2, ExpectedFileSizeMB: sizeMB, TTL: ttl,
	})
	require.NoError(t, err)

	return sig
}

func TestConcurrentRedeemHasOneWinner(t *testing.T) {
	env := testkit.New(t, testkit.WithPool(t, 8))
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)
	sig := issue(t, env, "alice", share.ID, 10, time.Hour)

	const workers = 16

	var (
		wg     sync.WaitGroup
		wins   atomic.Int64
		used   atomic.Int64
		others atomic.Int64
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := env.Tokens.RedeemUpload(context.Background(), sig.Signature)

			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, service.ErrTokenAlreadyUsed):
				used.Add(1)
			default:
				others.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, workers-1, used.Load())
	assert.Zero(t, others.Load())
}

func TestRedeemOutcomes(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	_, err := env.Tokens.RedeemUpload(ctx, "does-not-exist")
	assert.ErrorIs(t, err, service.ErrTokenNotFound)

	_, err = env.Tokens.RedeemUpload(ctx, "")
	assert.ErrorIs(t, err, service.ErrTokenNotFound)

	sig := issue(t, env, "alice", share.ID, 1, time.Minute)

	env.Clock.Advance(time.Minute)

	_, err = env.Tokens.RedeemUpload(ctx, sig.Signature)
	assert.ErrorIs(t, err, service.ErrTokenExpired, "expiry is exclusive")
	assert.ErrorIs(t, err, service.ErrToken)

	var row model.UploadSignature
	require.NoError(t, env.DB.Take(&row, "id = ?", sig.ID).Error)
	assert.Equal(t, model.SignatureUnused, row.Status, "a late redeem does not consume the signature")
}

func TestDownloadSignatureRestrictedToShareFiles(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	missing := "00000000-0000-0000-0000-000000000000"
	_, err := env.Tokens.IssueDownload(ctx, share.ID, &missing, time.Hour)
	assert.ErrorIs(t, err, service.ErrFileNotFound)

	_, err = env.Tokens.IssueDownload(ctx, "01HNOSUCHSHARE0000000000000", nil, time.Hour)
	assert.ErrorIs(t, err, service.ErrShareNotFound)

	_, err = env.Tokens.IssueDownload(ctx, share.ID, nil, 0)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestIssueUploadChecksOwnership(t *testing.T) {
	env := testkit.New(t)
	env.User(t, "alice")
	env.User(t, "mallory")
	share := env.Share(t, "alice", nil)

	_, err := env.Tokens.IssueUpload(context.Background(), service.IssueUploadParams{
		OwnerID: "mallory", ShareID: share.ID, ExpectedFileCount: 1, ExpectedFileSizeMB: 1, TTL: time.Hour,
	})
	assert.ErrorIs(t, err, service.ErrNotOwner)
	assert.Zero(t, env.Used(t, "mallory"))
}

func TestSignatureCollisionRetries(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	queue := []string{"fixed", "fixed", "fixed", "fresh"}

	var mu sync.Mutex

	gen := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()

		next := queue[0]
		queue = queue[1:]

		return next, nil
	}

	tokens := service.NewTokenService(env.DB, env.Ledger, service.WithClock(env.Clock.Now), service.WithSignatureGenerator(gen))

	first, err := tokens.IssueUpload(ctx, service.IssueUploadParams{
		OwnerID: "alice", ShareID: share.ID, ExpectedFileCount: 1, ExpectedFileSizeMB: 3, TTL: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed", first.Signature)

	second, err := tokens.IssueUpload(ctx, service.IssueUploadParams{
		OwnerID: "alice", ShareID: share.ID, ExpectedFileCount: 1, ExpectedFileSizeMB: 4, TTL: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", second.Signature)
	assert.EqualValues(t, 7, env.Used(t, "alice"), "the retry keeps exactly one hold")
}

func TestSignatureCollisionGivesUp(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	tokens := service.NewTokenService(env.DB, env.Ledger, service.WithSignatureGenerator(func() (string, error) {
		return "always-the-same", nil
	}))

	_, err := tokens.IssueUpload(ctx, service.IssueUploadParams{
		OwnerID: "alice", ShareID: share.ID, ExpectedFileCount: 1, ExpectedFileSizeMB: 3, TTL: time.Hour,
	})
	require.NoError(t, err)

	_, err = tokens.IssueUpload(ctx, service.IssueUploadParams{
		OwnerID: "alice", ShareID: share.ID, ExpectedFileCount: 1, ExpectedFileSizeMB: 4, TTL: time.Hour,
	})
	require.Error(t, err)
	assert.EqualValues(t, 3, env.Used(t, "alice"), "the failed issue rolls its reservation back")
}
