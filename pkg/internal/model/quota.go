package model

import "time"

// QuotaUsage is the running total of MB charged to a user.
type QuotaUsage struct {
	UserID      string    `gorm:"primaryKey;size:191"            json:"user_id"`
	UsedQuota   int64     `gorm:"not null;check:used_quota >= 0" json:"used_quota"`
	LastUpdated time.Time `gorm:"autoUpdateTime"                 json:"last_updated"`
}

// ReservationStatus is the lifecycle of a quota hold.
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// QuotaReservation records MB held against a user by one upload signature.
// ChargedMB is set on commit. Any part of AmountMB it leaves out goes back to the user then.
type QuotaReservation struct {
	UUIDModel
	UserID    string            `gorm:"size:191;not null;index"               json:"user_id"`
	AmountMB  int64             `gorm:"not null;check:amount_mb > 0"          json:"amount_mb"`
	ChargedMB int64             `gorm:"not null;default:0"                    json:"charged_mb"`
	Status    ReservationStatus `gorm:"size:16;not null;index"                json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	SettledAt *time.Time        `json:"settled_at,omitempty"`
}
