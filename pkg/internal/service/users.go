package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/types"
)

// UserService provisions profiles and plan assignments pushed by the identity
// and billing providers. Ids are opaque and trusted.
type UserService struct {
	db *gorm.DB
}

func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Upsert creates the profile or refreshes its email, name and avatar.
func (s *UserService) Upsert(ctx context.Context, req *types.UpsertUserRequest) (*model.User, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, validationf("user id is required")
	}

	user := model.User{ID: id, Email: req.Email, Name: req.Name, AvatarURL: req.AvatarURL}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "avatar_url", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return s.Get(ctx, id)
}

// Get returns a profile.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	var user model.User

	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}

	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return &user, nil
}

// SetPlan writes the user's plan assignment. Usage is not touched: a user
// above a smaller ceiling keeps existing files but cannot reserve more.
func (s *UserService) SetPlan(ctx context.Context, userID string, req *types.SetPlanRequest) (*model.UserPlan, error) {
	assignment := model.UserPlan{UserID: userID, PlanID: req.PlanID, ExpiresAt: req.ExpiresAt}
	if req.SubscriptionID != "" {
		sub := req.SubscriptionID
		assignment.SubscriptionID = &sub
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := NewUserService(tx).Get(ctx, userID); err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&model.Plan{}).Where("id = ?", req.PlanID).Count(&n).Error; err != nil {
			return err
		}

		if n == 0 {
			return fmt.Errorf("%w: %d", ErrPlanNotFound, req.PlanID)
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"plan_id", "expires_at", "subscription_id", "updated_at"}),
		}).Create(&assignment).Error
	})
	if err != nil {
		return nil, err
	}

	return &assignment, nil
}
