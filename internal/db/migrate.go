package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/zulandar/wallboard/internal/models"
)

// AllModels returns every GORM model the journal persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.EventRecord{},
	}
}

// AutoMigrate creates or updates all journal tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
