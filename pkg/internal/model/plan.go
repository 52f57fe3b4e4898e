package model

import "time"

// Plan is a subscription tier with a storage ceiling in MB.
type Plan struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	// PolarID is the id of the plan at the billing provider.
	PolarID   *string   `gorm:"size:128;uniqueIndex"             json:"polar_id,omitempty"`
	Name      string    `gorm:"size:128;not null"                json:"name"`
	QuotaMB   int64     `gorm:"not null;check:quota_mb >= 0"     json:"quota_mb"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
