package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/testkit"
)

func TestSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	for range 3 {
		issue(t, env, "alice", share.ID, 10, time.Minute)
	}

	live := issue(t, env, "alice", share.ID, 5, time.Hour)
	_, err := env.Tokens.IssueDownload(ctx, share.ID, nil, time.Minute)
	require.NoError(t, err)

	assert.EqualValues(t, 35, env.Used(t, "alice"))

	env.Clock.Advance(2 * time.Minute)

	first, err := env.Sweeper.Sweep(ctx, env.Clock.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, first.ExpiredUploads)
	assert.EqualValues(t, 30, first.ReleasedMB)
	assert.EqualValues(t, 1, first.ExpiredDownloads)
	assert.EqualValues(t, 5, env.Used(t, "alice"))

	second, err := env.Sweeper.Sweep(ctx, env.Clock.Now())
	require.NoError(t, err)
	assert.Zero(t, second.ExpiredUploads)
	assert.Zero(t, second.ReleasedMB)
	assert.Zero(t, second.ExpiredDownloads)
	assert.EqualValues(t, 5, env.Used(t, "alice"), "nothing is released twice")

	var row model.UploadSignature
	require.NoError(t, env.DB.Take(&row, "id = ?", live.ID).Error)
	assert.Equal(t, model.SignatureUnused, row.Status)
}

func TestSweepBatches(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	for range 7 {
		issue(t, env, "alice", share.ID, 1, time.Minute)
	}

	env.Clock.Advance(time.Hour)

	sweeper := service.NewSweepService(env.DB, env.Ledger, 2, 0)

	res, err := sweeper.Sweep(ctx, env.Clock.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 7, res.ExpiredUploads)
	assert.Zero(t, env.Used(t, "alice"))
}

func TestSweepReleasesStaleUploads(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	sig := issue(t, env, "alice", share.ID, 8, time.Hour)

	// redeemed, then the process died before commit or release
	_, err := env.Tokens.RedeemUpload(ctx, sig.Signature)
	require.NoError(t, err)

	sweeper := service.NewSweepService(env.DB, env.Ledger, 10, time.Hour)

	res, err := sweeper.Sweep(ctx, env.Clock.Now().Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, res.StaleReleased, "uploads in flight are left alone")
	assert.EqualValues(t, 8, env.Used(t, "alice"))

	res, err = sweeper.Sweep(ctx, env.Clock.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.StaleReleased)
	assert.Zero(t, env.Used(t, "alice"))

	assert.ErrorIs(t, env.Ledger.Commit(ctx, sig.ReservationID, 8), service.ErrConsistency, "a late commit loses")
}

func TestRedeemAfterSweepIsExpired(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	share := env.Share(t, "alice", nil)

	sig := issue(t, env, "alice", share.ID, 1, time.Minute)
	env.Clock.Advance(time.Minute)

	_, err := env.Sweeper.Sweep(ctx, env.Clock.Now())
	require.NoError(t, err)

	_, err = env.Tokens.RedeemUpload(ctx, sig.Signature)
	assert.ErrorIs(t, err, service.ErrTokenExpired)
}
