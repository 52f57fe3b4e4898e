package types

import "time"

// PublicShareInfo is a share as seen by a visitor.
type PublicShareInfo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	FileCount   int64      `json:"file_count"`
	Size        int64      `json:"size"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// VisitResponse is the share page: metadata, files and a fresh download link.
type VisitResponse struct {
	Share    PublicShareInfo      `json:"share"`
	Files    []FileInfo           `json:"files"`
	Download DownloadLinkResponse `json:"download"`
}

// SweepResult counts what one sweep pass changed.
type SweepResult struct {
	ExpiredUploads   int64 `json:"expired_uploads"`
	ReleasedMB       int64 `json:"released_mb"`
	ExpiredDownloads int64 `json:"expired_downloads"`
	StaleReleased    int64 `json:"stale_released"`
}
