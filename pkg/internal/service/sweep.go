package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/types"
	nlog "github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
)

// SweepService expires lapsed signatures and returns the quota they held.
// Every step is a conditional update, so concurrent or repeated sweeps are harmless.
type SweepService struct {
	db         *gorm.DB
	ledger     *QuotaLedger
	batch      int
	staleAfter time.Duration
}

func NewSweepService(gdb *gorm.DB, ledger *QuotaLedger, batch int, staleAfter time.Duration) *SweepService {
	if batch <= 0 {
		batch = 500
	}

	return &SweepService{db: gdb, ledger: ledger, batch: batch, staleAfter: staleAfter}
}

// Sweep runs one pass relative to now.
func (s *SweepService) Sweep(ctx context.Context, now time.Time) (types.SweepResult, error) {
	ctx, span := tracer.Start(ctx, "Sweep")
	defer span.End()

	var out types.SweepResult

	now = now.UTC()

	if err := s.expireUploads(ctx, now, &out); err != nil {
		return out, err
	}

	res := s.db.WithContext(ctx).Model(&model.DownloadSignature{}).
		Where("status = ? AND expiry <= ?", model.SignatureUnused, now).
		Update("status", model.SignatureExpired)
	if res.Error != nil {
		return out, fmt.Errorf("expire download signatures: %w", res.Error)
	}

	out.ExpiredDownloads = res.RowsAffected

	if s.staleAfter > 0 {
		if err := s.releaseStale(ctx, now.Add(-s.staleAfter), &out); err != nil {
			return out, err
		}
	}

	metrics.SweepReleased.Add(float64(out.ReleasedMB))

	if out.ExpiredUploads+out.ExpiredDownloads+out.StaleReleased > 0 {
		nlog.Logger().Info().
			Int64("expired_uploads", out.ExpiredUploads).
			Int64("expired_downloads", out.ExpiredDownloads).
			Int64("stale_released", out.StaleReleased).
			Int64("released_mb", out.ReleasedMB).
			Msg("sweep finished")
	}

	return out, nil
}

type expiring struct {
	ID            string
	ReservationID string
}

func (s *SweepService) expireUploads(ctx context.Context, now time.Time, out *types.SweepResult) error {
	for {
		var rows []expiring

		err := s.db.WithContext(ctx).Model(&model.UploadSignature{}).
			Select("id", "reservation_id").
			Where("status = ? AND expiry <= ?", model.SignatureUnused, now).
			Order("expiry").
			Limit(s.batch).
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("list expired upload signatures: %w", err)
		}

		for _, r := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}

			freed, ok, err := s.expireUpload(ctx, r)
			if err != nil {
				return err
			}

			if ok {
				out.ExpiredUploads++
				out.ReleasedMB += freed
			}
		}

		if len(rows) < s.batch {
			return nil
		}
	}
}

// expireUpload flips one signature and releases its hold in the same transaction.
// A lost race with a redeem leaves both untouched.
func (s *SweepService) expireUpload(ctx context.Context, r expiring) (int64, bool, error) {
	var (
		freed   int64
		flipped bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.UploadSignature{}).
			Where("id = ? AND status = ?", r.ID, model.SignatureUnused).
			Update("status", model.SignatureExpired)
		if res.Error != nil {
			return fmt.Errorf("expire upload signature: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			return nil
		}

		amount, ok, err := s.release(ctx, tx, r.ReservationID)
		if err != nil {
			return err
		}

		flipped = true
		if ok {
			freed = amount
		}

		return nil
	})

	return freed, flipped, err
}

func (s *SweepService) releaseStale(ctx context.Context, cutoff time.Time, out *types.SweepResult) error {
	for {
		var rows []model.QuotaReservation

		err := s.db.WithContext(ctx).
			Where("status = ?", model.ReservationHeld).
			Where("id IN (?)", s.db.Model(&model.UploadSignature{}).
				Select("reservation_id").
				Where("status = ? AND used_at <= ?", model.SignatureUsed, cutoff)).
			Order("created_at").
			Limit(s.batch).
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("list stale reservations: %w", err)
		}

		released := 0

		for _, r := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}

			freed, ok, err := s.release(ctx, s.db.WithContext(ctx), r.ID)
			if err != nil {
				nlog.Logger().Error().Err(err).Str("reservation_id", r.ID).Msg("sweep: release stale hold")
				continue
			}

			if ok {
				released++
				out.StaleReleased++
				out.ReleasedMB += freed
			}
		}

		if len(rows) < s.batch || released == 0 {
			return nil
		}
	}
}

// release returns a hold. A missing or already settled reservation is logged
// and reported as not released; only storage failures are returned.
func (s *SweepService) release(ctx context.Context, tx *gorm.DB, reservationID string) (int64, bool, error) {
	ledger := s.ledger.WithTx(tx)

	row, err := ledger.Reservation(ctx, reservationID)
	if err == nil {
		err = ledger.Release(ctx, reservationID)
	}

	switch {
	case err == nil:
		return row.AmountMB, true, nil
	case errors.Is(err, ErrConsistency):
		nlog.Logger().Warn().Err(err).Str("reservation_id", reservationID).Msg("sweep: hold not released")
		return 0, false, nil
	default:
		return 0, false, err
	}
}
