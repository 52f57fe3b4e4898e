package model

import (
	"time"

	"gorm.io/gorm"
)

// Share is a collection of files owned by one user. Counters only move
// inside committed transactions.
type Share struct {
	// ID is a ULID so listings sort by creation.
	ID            string         `gorm:"primaryKey;size:26"                  json:"id"`
	UserID        string         `gorm:"size:191;not null;index"             json:"user_id"`
	Title         string         `gorm:"size:255"                            json:"title"`
	Description   string         `gorm:"type:text"                           json:"description"`
	FileCount     int64          `gorm:"not null;check:file_count >= 0"      json:"file_count"`
	Size          int64          `gorm:"not null;check:size >= 0"            json:"size"`
	DownloadCount int64          `gorm:"not null;check:download_count >= 0"  json:"download_count"`
	ViewCount     int64          `gorm:"not null;check:view_count >= 0"      json:"view_count"`
	IsPublic      bool           `gorm:"not null"                            json:"is_public"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index"                               json:"-"`
}

// Deleted reports a soft deleted share.
func (s *Share) Deleted() bool {
	return s.DeletedAt.Valid
}

// ShareSettings holds the access policy of a share. A missing row means no policy.
type ShareSettings struct {
	ShareID       string     `gorm:"primaryKey;size:26"                                                json:"share_id"`
	ExpiresAt     *time.Time `gorm:"index"                                                             json:"expires_at,omitempty"`
	PasswordHash  string     `gorm:"size:128"                                                          json:"-"`
	DownloadLimit *int64     `gorm:"check:download_limit IS NULL OR download_limit > 0"                json:"download_limit,omitempty"`
	CustomSlug    *string    `gorm:"size:64;uniqueIndex"                                               json:"custom_slug,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Expired reports an expiry set and not after now.
func (s *ShareSettings) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Exhausted reports a download limit reached by count.
func (s *ShareSettings) Exhausted(count int64) bool {
	return s != nil && s.DownloadLimit != nil && count >= *s.DownloadLimit
}

// HasPassword reports a password protected share.
func (s *ShareSettings) HasPassword() bool {
	return s != nil && s.PasswordHash != ""
}
