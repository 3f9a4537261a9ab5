package database

import (
	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.LoginLink{},
		&models.Camera{},
		&models.CameraPhoto{},
		&models.CameraCommand{},
		&models.Device{},
		&models.DeviceCommand{},
		&models.DeviceTelemetry{},
		&models.DeviceAlert{},
		&models.Driver{},
		&models.Basket{},
		&models.Order{},
		&models.CacheEntry{},
	)
}

// SeedData ensures baseline records exist. The fleet schema has no static
// reference data, so this is currently a no-op kept for start-up symmetry.
func SeedData(db *gorm.DB) error {
	return nil
}
