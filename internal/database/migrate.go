package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/izumi-lms/izumi-api/internal/models"
)

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.CourseQuestion{},
		&models.CourseAnswer{},
		&models.UserPoints{},
		&models.PointEvent{},
		&models.ActivityLog{},
		&models.LoginAudit{},
	}
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
