package model

import (
	"time"

	"gorm.io/gorm"
)

// File is one uploaded object of a share. QuotaMB is the part of the upload
// charge attributed to this file and is freed when the file is deleted.
type File struct {
	UUIDModel
	ShareID   string         `gorm:"size:26;not null;index"          json:"share_id"`
	FileName  string         `gorm:"size:512;not null"               json:"file_name"`
	Mimetype  string         `gorm:"size:255"                        json:"mimetype"`
	Hash      string         `gorm:"size:64"                         json:"hash"`
	Size      int64          `gorm:"not null;check:size >= 0"        json:"size"`
	QuotaMB   int64          `gorm:"not null;check:quota_mb >= 0"    json:"quota_mb"`
	ObjectKey string         `gorm:"size:1024;not null"              json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index"                           json:"-"`
}
