package model

import "time"

// DownloadAnalytics is an append-only record of a granted download.
type DownloadAnalytics struct {
	UUIDModel
	ShareID   string    `gorm:"size:26;not null;index" json:"share_id"`
	FileID    *string   `gorm:"size:36"                json:"file_id,omitempty"`
	Timestamp time.Time `gorm:"not null;index"         json:"timestamp"`
	IPAddress string    `gorm:"size:64"                json:"ip_address"`
	UserAgent string    `gorm:"size:512"               json:"user_agent"`
	Country   *string   `gorm:"size:64"                json:"country,omitempty"`
	City      *string   `gorm:"size:128"               json:"city,omitempty"`
}

// VisitAnalytics is an append-only record of a share page visit.
type VisitAnalytics struct {
	UUIDModel
	ShareID   string    `gorm:"size:26;not null;index" json:"share_id"`
	Timestamp time.Time `gorm:"not null;index"         json:"timestamp"`
	IPAddress string    `gorm:"size:64"                json:"ip_address"`
	UserAgent string    `gorm:"size:512"               json:"user_agent"`
	Referrer  string    `gorm:"size:1024"              json:"referrer"`
	Country   *string   `gorm:"size:64"                json:"country,omitempty"`
	City      *string   `gorm:"size:128"               json:"city,omitempty"`
}
