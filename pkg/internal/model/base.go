// Package model holds the gorm models of the ledger, shares, signatures and analytics.
package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UUIDModel gives a row a string uuid assigned in Go, so every dialect behaves the same.
type UUIDModel struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
}

// BeforeCreate fills ID unless the caller chose one.
func (m *UUIDModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	return nil
}
