package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/metrics"
)

// Reservation is a hold of AmountMB against UserID's ceiling.
type Reservation struct {
	ID       string
	UserID   string
	AmountMB int64
}

// QuotaLedger is the single writer of quota_usages. Every mutation is a
// conditional single-row UPDATE inside a transaction, so the row lock (or the
// sqlite write lock) serializes concurrent callers of the same user and
// used_quota never passes the ceiling nor drops below zero.
type QuotaLedger struct {
	db    *gorm.DB
	plans *PlanService
	now   func() time.Time
}

func NewQuotaLedger(gdb *gorm.DB, plans *PlanService, now func() time.Time) *QuotaLedger {
	return &QuotaLedger{db: gdb, plans: plans, now: now}
}

// WithTx returns a ledger bound to an outer transaction.
func (l *QuotaLedger) WithTx(tx *gorm.DB) *QuotaLedger {
	c := *l
	c.db = tx
	c.plans = l.plans.WithTx(tx)

	return &c
}

// Reserve holds amountMB for userID or fails with ErrQuotaExceeded.
func (l *QuotaLedger) Reserve(ctx context.Context, userID string, amountMB int64) (*Reservation, error) {
	if userID == "" {
		return nil, validationf("user id is required")
	}

	if amountMB <= 0 {
		return nil, validationf("reservation amount must be positive, got %d", amountMB)
	}

	var res *Reservation

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ceiling, err := l.plans.WithTx(tx).Ceiling(ctx, userID)
		if err != nil {
			return err
		}

		if err := l.increment(tx, userID, amountMB, ceiling); err != nil {
			return err
		}

		row := model.QuotaReservation{
			UserID:   userID,
			AmountMB: amountMB,
			Status:   model.ReservationHeld,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}

		res = &Reservation{ID: row.ID, UserID: userID, AmountMB: amountMB}

		return nil
	})
	if errors.Is(err, ErrQuotaExceeded) {
		metrics.QuotaRejections.Inc()
	}

	return res, err
}

// Commit settles a held reservation with the final charge. The difference
// between the held amount and chargedMB goes back to the user.
func (l *QuotaLedger) Commit(ctx context.Context, reservationID string, chargedMB int64) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := l.load(tx, reservationID)
		if err != nil {
			return err
		}

		if chargedMB < 0 || chargedMB > row.AmountMB {
			return validationf("charge %d outside reservation of %d MB", chargedMB, row.AmountMB)
		}

		if err := l.settle(tx, row, model.ReservationCommitted, chargedMB); err != nil {
			return err
		}

		return l.decrement(tx, row.UserID, row.AmountMB-chargedMB)
	})
}

// Release returns a held reservation in full.
func (l *QuotaLedger) Release(ctx context.Context, reservationID string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := l.load(tx, reservationID)
		if err != nil {
			return err
		}

		if err := l.settle(tx, row, model.ReservationReleased, 0); err != nil {
			return err
		}

		return l.decrement(tx, row.UserID, row.AmountMB)
	})
}

// Adjust applies an out-of-band correction, e.g. freeing a deleted file.
// Positive deltas respect the ceiling; negative ones may not underflow.
func (l *QuotaLedger) Adjust(ctx context.Context, userID string, deltaMB int64) error {
	if deltaMB == 0 {
		return nil
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if deltaMB < 0 {
			return l.decrement(tx, userID, -deltaMB)
		}

		ceiling, err := l.plans.WithTx(tx).Ceiling(ctx, userID)
		if err != nil {
			return err
		}

		return l.increment(tx, userID, deltaMB, ceiling)
	})
}

// Usage reports the user's position against the current ceiling.
func (l *QuotaLedger) Usage(ctx context.Context, userID string) (*types.QuotaUsage, error) {
	plan, err := l.plans.EffectivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	var usage model.QuotaUsage

	err = l.db.WithContext(ctx).Take(&usage, "user_id = ?", userID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup usage: %w", err)
	}

	out := &types.QuotaUsage{
		UserID:      userID,
		PlanID:      plan.ID,
		PlanName:    plan.Name,
		CeilingMB:   plan.QuotaMB,
		UsedMB:      usage.UsedQuota,
		AvailableMB: max(plan.QuotaMB-usage.UsedQuota, 0),
	}

	switch {
	case plan.QuotaMB > 0:
		out.UsagePercent = float64(usage.UsedQuota) * 100 / float64(plan.QuotaMB)
	case usage.UsedQuota > 0:
		out.UsagePercent = 100
	}

	return out, nil
}

// Reservation returns the stored reservation row.
func (l *QuotaLedger) Reservation(ctx context.Context, id string) (*model.QuotaReservation, error) {
	return l.load(l.db.WithContext(ctx), id)
}

func (l *QuotaLedger) load(tx *gorm.DB, id string) (*model.QuotaReservation, error) {
	var row model.QuotaReservation

	err := tx.Take(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, consistencyf("reservation %s does not exist", id)
	}

	if err != nil {
		return nil, fmt.Errorf("lookup reservation: %w", err)
	}

	return &row, nil
}

// settle moves a reservation out of held. Any other current state is a consistency error.
func (l *QuotaLedger) settle(tx *gorm.DB, row *model.QuotaReservation, to model.ReservationStatus, chargedMB int64) error {
	now := l.now()

	res := tx.Model(&model.QuotaReservation{}).
		Where("id = ? AND status = ?", row.ID, model.ReservationHeld).
		Updates(map[string]any{
			"status":     to,
			"charged_mb": chargedMB,
			"settled_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("settle reservation: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return consistencyf("reservation %s is %s, cannot move to %s", row.ID, row.Status, to)
	}

	row.Status = to
	row.ChargedMB = chargedMB
	row.SettledAt = &now

	return nil
}

func (l *QuotaLedger) increment(tx *gorm.DB, userID string, amountMB, ceiling int64) error {
	seed := model.QuotaUsage{UserID: userID, UsedQuota: 0, LastUpdated: l.now()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("seed usage row: %w", err)
	}

	res := tx.Model(&model.QuotaUsage{}).
		Where("user_id = ? AND used_quota + ? <= ?", userID, amountMB, ceiling).
		Updates(map[string]any{
			"used_quota":   gorm.Expr("used_quota + ?", amountMB),
			"last_updated": l.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("charge quota: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d MB requested, ceiling %d MB", ErrQuotaExceeded, amountMB, ceiling)
	}

	return nil
}

func (l *QuotaLedger) decrement(tx *gorm.DB, userID string, amountMB int64) error {
	if amountMB == 0 {
		return nil
	}

	res := tx.Model(&model.QuotaUsage{}).
		Where("user_id = ? AND used_quota >= ?", userID, amountMB).
		Updates(map[string]any{
			"used_quota":   gorm.Expr("used_quota - ?", amountMB),
			"last_updated": l.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("refund quota: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return consistencyf("refund of %d MB would take %s below zero", amountMB, userID)
	}

	return nil
}
