package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetdeck-io/fleetdeck/internal/models"
)

func TestAutoMigrateCreatesFleetTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	tables := []interface{}{
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
	}

	for _, table := range tables {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
}

func TestAutoMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AutoMigrate(db))
}
