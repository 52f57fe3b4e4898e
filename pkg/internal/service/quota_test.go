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
	"github.com/yeisme/sharevault/pkg/internal/types"
)

func TestReserveUnknownUser(t *testing.T) {
	env := testkit.New(t)

	_, err := env.Ledger.Reserve(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, service.ErrUnknownUser)
}

func TestReserveRejectsNonPositiveAmounts(t *testing.T) {
	env := testkit.New(t)
	env.User(t, "alice")

	for _, amount := range []int64{0, -5} {
		_, err := env.Ledger.Reserve(context.Background(), "alice", amount)
		assert.ErrorIs(t, err, service.ErrValidation)
	}

	assert.Zero(t, env.Used(t, "alice"))
}

const (
	raceWorkers = 20
	raceAmount  = 30
)

// reserveRace runs raceWorkers concurrent reservations of raceAmount and
// counts the outcomes.
func reserveRace(t *testing.T, reserve func(ctx context.Context) error) (ok, exceeded int64) {
	t.Helper()

	var (
		wg      sync.WaitGroup
		granted atomic.Int64
		refused atomic.Int64
		other   atomic.Value
	)

	for range raceWorkers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := reserve(context.Background())

			switch {
			case err == nil:
				granted.Add(1)
			case errors.Is(err, service.ErrQuotaExceeded):
				refused.Add(1)
			default:
				other.Store(err)
			}
		}()
	}

	wg.Wait()
	require.Nil(t, other.Load())

	return granted.Load(), refused.Load()
}

// withinCeiling holds when every granted reservation is counted exactly once
// and the total stays under the baseline ceiling.
func withinCeiling(ok, used int64) bool {
	return used == ok*raceAmount && used <= testkit.BaselineQuotaMB
}

func TestConcurrentReservationsNeverPassTheCeiling(t *testing.T) {
	env := testkit.New(t, testkit.WithPool(t, 8))
	env.User(t, "alice")

	ok, exceeded := reserveRace(t, func(ctx context.Context) error {
		_, err := env.Ledger.Reserve(ctx, "alice", raceAmount)
		return err
	})

	used := env.Used(t, "alice")

	assert.True(t, withinCeiling(ok, used), "ok=%d used=%d", ok, used)
	assert.EqualValues(t, testkit.BaselineQuotaMB/raceAmount, ok)
	assert.EqualValues(t, raceWorkers-testkit.BaselineQuotaMB/raceAmount, exceeded)
}

// A ledger that reads the total, checks it and writes it back loses updates
// under the same load, which the ceiling check above catches.
func TestCheckThenWriteLedgerFailsTheCeilingCheck(t *testing.T) {
	env := testkit.New(t, testkit.WithPool(t, 8))
	env.User(t, "alice")

	require.NoError(t, env.DB.Create(&model.QuotaUsage{UserID: "alice", LastUpdated: env.Clock.Now()}).Error)

	var read sync.WaitGroup
	read.Add(raceWorkers)

	ok, _ := reserveRace(t, func(ctx context.Context) error {
		var usage model.QuotaUsage
		err := env.DB.WithContext(ctx).Take(&usage, "user_id = ?", "alice").Error

		// every worker reads before any of them writes
		read.Done()
		read.Wait()

		if err != nil {
			return err
		}

		if usage.UsedQuota+raceAmount > testkit.BaselineQuotaMB {
			return service.ErrQuotaExceeded
		}

		return env.DB.WithContext(ctx).Model(&model.QuotaUsage{}).
			Where("user_id = ?", "alice").
			Update("used_quota", usage.UsedQuota+raceAmount).Error
	})

	used := env.Used(t, "alice")

	assert.EqualValues(t, raceWorkers, ok)
	assert.False(t, withinCeiling(ok, used), "ok=%d used=%d", ok, used)
}

func TestReleaseIsSingleShot(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	res, err := env.Ledger.Reserve(ctx, "alice", 40)
	require.NoError(t, err)
	assert.EqualValues(t, 40, env.Used(t, "alice"))

	require.NoError(t, env.Ledger.Release(ctx, res.ID))
	assert.Zero(t, env.Used(t, "alice"))

	assert.ErrorIs(t, env.Ledger.Release(ctx, res.ID), service.ErrConsistency)
	assert.ErrorIs(t, env.Ledger.Commit(ctx, res.ID, 40), service.ErrConsistency)
	assert.Zero(t, env.Used(t, "alice"), "failed transitions leave the total alone")
}

func TestCommitRefundsTheUnusedPart(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	res, err := env.Ledger.Reserve(ctx, "alice", 50)
	require.NoError(t, err)

	require.NoError(t, env.Ledger.Commit(ctx, res.ID, 12))
	assert.EqualValues(t, 12, env.Used(t, "alice"))

	row, err := env.Ledger.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCommitted, row.Status)
	assert.EqualValues(t, 12, row.ChargedMB)
	require.NotNil(t, row.SettledAt)

	assert.ErrorIs(t, env.Ledger.Release(ctx, res.ID), service.ErrConsistency, "committed holds cannot be released")
	assert.EqualValues(t, 12, env.Used(t, "alice"))
}

func TestCommitRejectsOvercharge(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	res, err := env.Ledger.Reserve(ctx, "alice", 5)
	require.NoError(t, err)

	assert.ErrorIs(t, env.Ledger.Commit(ctx, res.ID, 6), service.ErrValidation)
	assert.ErrorIs(t, env.Ledger.Commit(ctx, "missing", 1), service.ErrConsistency)
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	require.NoError(t, env.Ledger.Adjust(ctx, "alice", 70))
	assert.ErrorIs(t, env.Ledger.Adjust(ctx, "alice", 31), service.ErrQuotaExceeded)
	require.NoError(t, env.Ledger.Adjust(ctx, "alice", -20))
	assert.ErrorIs(t, env.Ledger.Adjust(ctx, "alice", -51), service.ErrConsistency, "no underflow")
	assert.EqualValues(t, 50, env.Used(t, "alice"))
}

func TestUsageFollowsThePlan(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")

	require.NoError(t, env.Plans.Upsert(ctx, &model.Plan{ID: 2, Name: "pro", QuotaMB: 1000}))

	expires := env.Clock.Now().Add(time.Hour)
	_, err := env.Users.SetPlan(ctx, "alice", &types.SetPlanRequest{PlanID: 2, ExpiresAt: &expires})
	require.NoError(t, err)

	require.NoError(t, env.Ledger.Adjust(ctx, "alice", 250))

	usage, err := env.Ledger.Usage(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, usage.CeilingMB)
	assert.EqualValues(t, 750, usage.AvailableMB)
	assert.InDelta(t, 25.0, usage.UsagePercent, 0.001)
	assert.Equal(t, "pro", usage.PlanName)

	// the assignment lapses and the baseline applies again
	env.Clock.Advance(2 * time.Hour)

	usage, err = env.Ledger.Usage(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, testkit.BaselineQuotaMB, usage.CeilingMB)
	assert.Zero(t, usage.AvailableMB)

	_, err = env.Ledger.Reserve(ctx, "alice", 1)
	assert.ErrorIs(t, err, service.ErrQuotaExceeded)
}

func TestSecondIntentOverCeilingIsRefused(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)
	env.User(t, "alice")
	env.Plan(t, "alice", 1000)

	share := env.Share(t, "alice", nil)

	first := env.Intent(t, "alice", share.ID, 1, 800)
	assert.EqualValues(t, 800, env.Used(t, "alice"))

	_, err := env.Tokens.IssueUpload(ctx, service.IssueUploadParams{
		OwnerID: "alice", ShareID: share.ID, ExpectedFileCount: 1, ExpectedFileSizeMB: 300, TTL: time.Hour,
	})
	require.ErrorIs(t, err, service.ErrQuotaExceeded)

	var signatures int64
	require.NoError(t, env.DB.Model(&model.UploadSignature{}).Count(&signatures).Error)
	assert.EqualValues(t, 1, signatures, "a refused reservation issues no signature")

	_, err = env.Uploads.Upload(ctx, first.Signature, testkit.Parts("notes.txt", "five!"))
	require.NoError(t, err)
	assert.EqualValues(t, 800, env.Used(t, "alice"), "the commit keeps the hold")

	_, err = env.Tokens.IssueUpload(ctx, service.IssueUploadParams{
		OwnerID: "alice", ShareID: share.ID, ExpectedFileCount: 1, ExpectedFileSizeMB: 300, TTL: time.Hour,
	})
	assert.ErrorIs(t, err, service.ErrQuotaExceeded)
}

func TestPlanCatalogIsCachedUntilUpsert(t *testing.T) {
	ctx := context.Background()
	env := testkit.New(t)

	first, err := env.Plans.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, first.Plans, 1)

	// written around the service, so only the cache can hide it
	require.NoError(t, env.DB.Create(&model.Plan{ID: 5, Name: "side", QuotaMB: 1}).Error)

	cached, err := env.Plans.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ETag, cached.ETag)
	assert.Len(t, cached.Plans, 1)

	require.NoError(t, env.Plans.Upsert(ctx, &model.Plan{ID: 2, Name: "pro", QuotaMB: 1000}))

	fresh, err := env.Plans.Catalog(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ETag, fresh.ETag)
	assert.Len(t, fresh.Plans, 3)
}
