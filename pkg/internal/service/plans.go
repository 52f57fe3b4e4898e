package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/db"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

const (
	catalogKey = "catalog"
	catalogTTL = time.Minute
)

// PlanService reads the plan catalog and resolves a user's effective ceiling.
type PlanService struct {
	db         *gorm.DB
	baselineID int64
	now        func() time.Time
	catalog    *cache.Cache
}

// NewPlanService builds the service. A nil catalog cache reads the catalog
// from the database every time.
func NewPlanService(gdb *gorm.DB, baselineID int64, now func() time.Time, catalog *cache.Cache) *PlanService {
	return &PlanService{db: gdb, baselineID: baselineID, now: now, catalog: catalog}
}

// PlanCatalog is the plan list plus a strong ETag of its JSON form.
type PlanCatalog struct {
	Plans []model.Plan `json:"plans"`
	ETag  string       `json:"etag"`
}

// WithTx returns a copy reading through tx.
func (s *PlanService) WithTx(tx *gorm.DB) *PlanService {
	c := *s
	c.db = tx

	return &c
}

// Ceiling returns the quota ceiling in MB of userID. A missing or expired
// assignment falls back to the baseline plan.
func (s *PlanService) Ceiling(ctx context.Context, userID string) (int64, error) {
	plan, err := s.EffectivePlan(ctx, userID)
	if err != nil {
		return 0, err
	}

	return plan.QuotaMB, nil
}

// EffectivePlan returns the plan currently governing userID.
func (s *PlanService) EffectivePlan(ctx context.Context, userID string) (*model.Plan, error) {
	tx := s.db.WithContext(ctx)

	var n int64
	if err := tx.Model(&model.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	planID := s.baselineID

	var assignment model.UserPlan

	err := tx.Where("user_id = ?", userID).Take(&assignment).Error

	switch {
	case err == nil:
		if assignment.Active(s.now()) {
			planID = assignment.PlanID
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lookup plan assignment: %w", err)
	}

	plan, err := s.Get(ctx, planID)
	if errors.Is(err, ErrPlanNotFound) && planID != s.baselineID {
		return s.Get(ctx, s.baselineID)
	}

	return plan, err
}

// Get returns one plan.
func (s *PlanService) Get(ctx context.Context, id int64) (*model.Plan, error) {
	var plan model.Plan

	err := s.db.WithContext(ctx).Take(&plan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrPlanNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("lookup plan: %w", err)
	}

	return &plan, nil
}

// List returns every plan ordered by id.
func (s *PlanService) List(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	if err := s.db.WithContext(ctx).Order("id").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	return plans, nil
}

// Catalog returns the plan list, served from the catalog cache when there is one.
func (s *PlanService) Catalog(ctx context.Context) (*PlanCatalog, error) {
	load := func() (*PlanCatalog, error) {
		plans, err := s.List(ctx)
		if err != nil {
			return nil, err
		}

		body, err := sonic.Marshal(plans)
		if err != nil {
			return nil, fmt.Errorf("encode plans: %w", err)
		}

		return &PlanCatalog{Plans: plans, ETag: fmt.Sprintf("\"%x\"", xxhash.Sum64(body))}, nil
	}

	if s.catalog == nil {
		return load()
	}

	return cache.GetOrSet(ctx, s.catalog, catalogKey, load, catalogTTL)
}

func (s *PlanService) forgetCatalog(ctx context.Context) {
	if s.catalog == nil {
		return
	}

	if err := s.catalog.Delete(ctx, catalogKey); err != nil {
		nlog.Logger().Warn().Err(err).Msg("drop cached plan catalog")
	}
}

// Upsert creates a plan or updates its name, quota and billing id.
func (s *PlanService) Upsert(ctx context.Context, plan *model.Plan) error {
	if plan.ID <= 0 {
		return validationf("plan id must be positive")
	}

	if plan.Name == "" {
		return validationf("plan name is required")
	}

	if plan.QuotaMB < 0 {
		return validationf("quota_mb must be >= 0")
	}

	err := s.db.WithContext(ctx).Save(plan).Error
	if db.IsDuplicate(err) {
		return validationf("polar_id %q already assigned to another plan", deref(plan.PolarID))
	}

	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}

	s.forgetCatalog(ctx)

	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}

	return *p
}
