package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetdeck-io/fleetdeck/internal/database/testutil"
	"github.com/fleetdeck-io/fleetdeck/internal/models"
	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
)

func TestCameraRegisterIssuesTokenOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCameraService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	created, err := svc.Register(ctx, RegisterCameraInput{
		CameraID:   "cam-001",
		CameraName: "Basket Cam 1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.APIToken)
	require.Equal(t, models.CameraStatusOffline, created.Status)
	require.Equal(t, "esp32-cam", created.DeviceType)

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, fetched.APIToken)
}

func TestCameraRegisterConflictOnDuplicateID(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCameraService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Register(ctx, RegisterCameraInput{CameraID: "cam-001", CameraName: "First"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterCameraInput{CameraID: "cam-001", CameraName: "Second"})
	require.Error(t, err)

	appErr := apperrors.FromError(err)
	require.Equal(t, 409, appErr.StatusCode)
}

func TestCameraGetByEitherIdentifier(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCameraService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	created, err := svc.Register(ctx, RegisterCameraInput{CameraID: "cam-007", CameraName: "Lucky"})
	require.NoError(t, err)

	byRow, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	byDevice, err := svc.Get(ctx, "cam-007")
	require.NoError(t, err)
	require.Equal(t, byRow.ID, byDevice.ID)
}

func TestCameraHeartbeatUpdatesStatus(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCameraService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	created, err := svc.Register(ctx, RegisterCameraInput{CameraID: "cam-001", CameraName: "Cam"})
	require.NoError(t, err)

	battery := 87
	wifi := -52
	updated, err := svc.Heartbeat(ctx, created.ID, CameraHeartbeatInput{
		Status:       models.CameraStatusOnline,
		BatteryLevel: &battery,
		WifiSignal:   &wifi,
	})
	require.NoError(t, err)
	require.Equal(t, models.CameraStatusOnline, updated.Status)
	require.NotNil(t, updated.LastSeen)
	require.Equal(t, 87, *updated.BatteryLevel)

	_, err = svc.Heartbeat(ctx, created.ID, CameraHeartbeatInput{Status: "sleeping"})
	require.Error(t, err)
}

func TestCameraRotateToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCameraService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	created, err := svc.Register(ctx, RegisterCameraInput{CameraID: "cam-001", CameraName: "Cam"})
	require.NoError(t, err)

	rotated, err := svc.RotateToken(ctx, created.ID)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.APIToken)
	require.NotEqual(t, created.APIToken, rotated.APIToken)

	var stored models.Camera
	require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
	require.Equal(t, rotated.APIToken, stored.APIToken)
}

func TestCameraMarkStaleOffline(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCameraService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	stale, err := svc.Register(ctx, RegisterCameraInput{CameraID: "cam-stale", CameraName: "Stale"})
	require.NoError(t, err)
	fresh, err := svc.Register(ctx, RegisterCameraInput{CameraID: "cam-fresh", CameraName: "Fresh"})
	require.NoError(t, err)

	old := time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, db.Model(&models.Camera{}).Where("id = ?", stale.ID).
		Updates(map[string]any{"status": models.CameraStatusOnline, "last_seen": old}).Error)
	require.NoError(t, db.Model(&models.Camera{}).Where("id = ?", fresh.ID).
		Updates(map[string]any{"status": models.CameraStatusOnline, "last_seen": time.Now().UTC()}).Error)

	changed, err := svc.MarkStaleOffline(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)

	got, err := svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, models.CameraStatusOffline, got.Status)

	got, err = svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, models.CameraStatusOnline, got.Status)
}

func TestCameraDeleteRemovesDependents(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCameraService(db, nil)
	require.NoError(t, err)
	commands, err := NewCameraCommandService(db)
	require.NoError(t, err)

	ctx := context.Background()
	created, err := svc.Register(ctx, RegisterCameraInput{CameraID: "cam-001", CameraName: "Cam"})
	require.NoError(t, err)

	_, err = commands.Queue(ctx, QueueCommandInput{CameraID: created.ID, CommandType: "take_photo"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	var count int64
	require.NoError(t, db.Model(&models.CameraCommand{}).Count(&count).Error)
	require.Zero(t, count)

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
