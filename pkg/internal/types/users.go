package types

import "time"

// UpsertUserRequest provisions a profile pushed by the identity provider.
type UpsertUserRequest struct {
	ID        string `json:"id"         rule:"required,max=191"`
	Email     string `json:"email"      rule:"omitempty,email"`
	Name      string `json:"name"       rule:"max=255"`
	AvatarURL string `json:"avatar_url" rule:"omitempty,url"`
}

// SetPlanRequest assigns a plan, as pushed by the billing provider.
type SetPlanRequest struct {
	PlanID         int64      `json:"plan_id"         rule:"required,min=1"`
	ExpiresAt      *time.Time `json:"expires_at"`
	SubscriptionID string     `json:"subscription_id" rule:"max=128"`
}

// UpsertPlanRequest creates or updates a catalog plan.
type UpsertPlanRequest struct {
	ID      int64  `json:"id"       rule:"required,min=1"`
	Name    string `json:"name"     rule:"required,max=128"`
	QuotaMB int64  `json:"quota_mb" rule:"min=0"`
	PolarID string `json:"polar_id" rule:"max=128"`
}

// QuotaUsage is the caller's ledger position.
type QuotaUsage struct {
	UserID       string  `json:"user_id"`
	PlanID       int64   `json:"plan_id"`
	PlanName     string  `json:"plan_name"`
	CeilingMB    int64   `json:"ceiling_mb"`
	UsedMB       int64   `json:"used_mb"`
	AvailableMB  int64   `json:"available_mb"`
	UsagePercent float64 `json:"usage_percent"`
}
