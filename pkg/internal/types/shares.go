// Package types holds request and response bodies of the HTTP API.
package types

import "time"

// CreateShareRequest creates an empty share; files arrive through upload intents.
type CreateShareRequest struct {
	Title       string `json:"title"       rule:"max=255"`
	Description string `json:"description" rule:"max=4096"`
	// IsPublic defaults to true.
	IsPublic *bool `json:"is_public"`
	// ExpiresAt closes the share to downloads and visits once passed.
	ExpiresAt *time.Time `json:"expires_at"`
	// Password is stored as a bcrypt hash; bcrypt ignores bytes past 72.
	Password      string `json:"password"       rule:"max=72"`
	DownloadLimit *int64 `json:"download_limit" rule:"omitempty,min=1"`
	CustomSlug    string `json:"custom_slug"    rule:"omitempty,slug"`
}

// UpdateShareSettingsRequest patches a share. Nil fields are left alone.
type UpdateShareSettingsRequest struct {
	Title       *string    `json:"title"       rule:"omitempty,max=255"`
	Description *string    `json:"description" rule:"omitempty,max=4096"`
	IsPublic    *bool      `json:"is_public"`
	ExpiresAt   *time.Time `json:"expires_at"`
	// ClearExpiry removes the expiry; it wins over ExpiresAt.
	ClearExpiry bool `json:"clear_expiry"`
	// Password "" removes the password.
	Password *string `json:"password" rule:"omitempty,max=72"`
	// DownloadLimit 0 removes the limit.
	DownloadLimit *int64 `json:"download_limit" rule:"omitempty,min=0"`
	// CustomSlug "" removes the slug.
	CustomSlug *string `json:"custom_slug" rule:"omitempty,slug"`
}

// ShareSettingsInfo is the visible part of a share's access policy.
type ShareSettingsInfo struct {
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	HasPassword   bool       `json:"has_password"`
	DownloadLimit *int64     `json:"download_limit,omitempty"`
	CustomSlug    *string    `json:"custom_slug,omitempty"`
}

// ShareInfo is a share as seen by its owner.
type ShareInfo struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	IsPublic      bool              `json:"is_public"`
	FileCount     int64             `json:"file_count"`
	Size          int64             `json:"size"`
	DownloadCount int64             `json:"download_count"`
	ViewCount     int64             `json:"view_count"`
	Settings      ShareSettingsInfo `json:"settings"`
	// URL is the public visit page.
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShareDetail adds the live files.
type ShareDetail struct {
	ShareInfo
	Files []FileInfo `json:"files"`
}

// ListSharesResponse lists the caller's live shares, newest first.
type ListSharesResponse struct {
	Shares []ShareInfo `json:"shares"`
}

// FileInfo describes one stored file.
type FileInfo struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Mimetype  string    `json:"mimetype"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	QuotaMB   int64     `json:"quota_mb"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateDownloadLinkRequest issues a download signature for a share or one of its files.
type CreateDownloadLinkRequest struct {
	FileID     string `json:"file_id"     rule:"omitempty,uuid"`
	TTLSeconds int64  `json:"ttl_seconds" rule:"omitempty,min=1"`
}

// DownloadLinkResponse carries a single-use download capability.
type DownloadLinkResponse struct {
	Signature string    `json:"signature"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
