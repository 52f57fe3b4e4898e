package model

import "time"

// SignatureStatus is the three-state lifecycle shared by upload and download signatures.
type SignatureStatus string

const (
	SignatureUnused  SignatureStatus = "unused"
	SignatureUsed    SignatureStatus = "used"
	SignatureExpired SignatureStatus = "expired"
)

// UploadSignature is a single-use upload capability backed by a quota reservation.
type UploadSignature struct {
	UUIDModel
	ShareID           string    `gorm:"size:26;not null;index"       json:"share_id"`
	UserID            string    `gorm:"size:191;not null;index"      json:"user_id"`
	ReservationID     string    `gorm:"size:36;not null;index"       json:"reservation_id"`
	Signature         string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Expiry            time.Time `gorm:"not null;index"               json:"expiry"`
	ExpectedFileCount int       `gorm:"not null"                     json:"expected_file_count"`
	// ExpectedFileSize is in MB.
	ExpectedFileSize int64           `gorm:"not null"                     json:"expected_file_size"`
	Status           SignatureStatus `gorm:"size:16;not null;index"       json:"status"`
	UsedAt           *time.Time      `gorm:"index"                        json:"used_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// DownloadSignature is a single-use download capability. FileID restricts it to one file.
type DownloadSignature struct {
	UUIDModel
	ShareID   string          `gorm:"size:26;not null;index"       json:"share_id"`
	FileID    *string         `gorm:"size:36"                      json:"file_id,omitempty"`
	Signature string          `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Expiry    time.Time       `gorm:"not null;index"               json:"expiry"`
	Status    SignatureStatus `gorm:"size:16;not null;index"       json:"status"`
	UsedAt    *time.Time      `json:"used_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
