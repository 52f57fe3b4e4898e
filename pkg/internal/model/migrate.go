package model

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// All lists every model in dependency order.
func All() []any {
	return []any{
		&Plan{},
		&User{},
		&UserPlan{},
		&QuotaUsage{},
		&QuotaReservation{},
		&Share{},
		&ShareSettings{},
		&File{},
		&UploadSignature{},
		&DownloadSignature{},
		&DownloadAnalytics{},
		&VisitAnalytics{},
	}
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}

// SeedBaselinePlan inserts the fallback plan when it does not exist yet.
// An existing row is left untouched so operators can resize it.
func SeedBaselinePlan(db *gorm.DB, id, quotaMB int64) error {
	plan := Plan{ID: id, Name: "free", QuotaMB: quotaMB}

	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&plan).Error
}
