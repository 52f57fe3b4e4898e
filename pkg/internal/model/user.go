package model

import "time"

// User is a profile provisioned from the identity provider. ID is opaque.
type User struct {
	ID        string    `gorm:"primaryKey;size:191" json:"id"`
	Email     string    `gorm:"size:255;index"      json:"email"`
	Name      string    `gorm:"size:255"            json:"name"`
	AvatarURL string    `gorm:"size:1024"           json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPlan assigns a plan to a user. One row per user; the billing provider owns it.
type UserPlan struct {
	UserID         string     `gorm:"primaryKey;size:191" json:"user_id"`
	PlanID         int64      `gorm:"not null;index"      json:"plan_id"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	SubscriptionID *string    `gorm:"size:128"            json:"subscription_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Active reports whether the assignment still applies at now.
func (p *UserPlan) Active(now time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
