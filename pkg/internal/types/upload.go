package types

import "time"

// CreateUploadIntentRequest reserves quota and returns an upload signature.
type CreateUploadIntentRequest struct {
	ExpectedFileCount int `json:"expected_file_count" rule:"required,min=1"`
	// ExpectedFileSizeMB is the total size of all files, rounded up to MB.
	ExpectedFileSizeMB int64 `json:"expected_file_size" rule:"required,min=1"`
	TTLSeconds         int64 `json:"ttl_seconds"        rule:"omitempty,min=1"`
}

// UploadIntentResponse is returned once; the signature is not shown again.
type UploadIntentResponse struct {
	ID                 string    `json:"id"`
	ShareID            string    `json:"share_id"`
	Signature          string    `json:"signature"`
	URL                string    `json:"url"`
	ExpiresAt          time.Time `json:"expires_at"`
	ExpectedFileCount  int       `json:"expected_file_count"`
	ExpectedFileSizeMB int64     `json:"expected_file_size"`
}

// UploadState is the derived lifecycle of an upload intent.
type UploadState string

const (
	UploadReserved  UploadState = "reserved"
	UploadUploading UploadState = "uploading"
	UploadCommitted UploadState = "committed"
	UploadReleased  UploadState = "released"
	UploadExpired   UploadState = "expired"
)

// UploadIntentStatus reports where an upload intent stands.
type UploadIntentStatus struct {
	ID         string      `json:"id"`
	ShareID    string      `json:"share_id"`
	State      UploadState `json:"state"`
	ExpiresAt  time.Time   `json:"expires_at"`
	UsedAt     *time.Time  `json:"used_at,omitempty"`
	ReservedMB int64       `json:"reserved_mb"`
	ChargedMB  int64       `json:"charged_mb"`
}

// UploadResult is the body of a successful upload.
type UploadResult struct {
	ShareID   string     `json:"share_id"`
	Files     []FileInfo `json:"files"`
	ChargedMB int64      `json:"charged_mb"`
}
