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

func newDeviceService(t *testing.T) *DeviceService {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDeviceService(db, nil)
	require.NoError(t, err)
	return svc
}

func TestDeviceRegisterStartsProvisioning(t *testing.T) {
	svc := newDeviceService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterDeviceInput{
		DeviceID:   "mesh-001",
		DeviceName: "Basket Node 1",
	})
	require.NoError(t, err)
	require.Equal(t, models.DeviceStatusProvisioning, created.Status)
	require.Equal(t, "meshtastic", created.DeviceType)
}

func TestDeviceRegisterConflict(t *testing.T) {
	svc := newDeviceService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterDeviceInput{DeviceID: "mesh-001", DeviceName: "First"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterDeviceInput{DeviceID: "mesh-001", DeviceName: "Second"})
	require.Error(t, err)
	require.Equal(t, 409, apperrors.FromError(err).StatusCode)
}

func TestDeviceTelemetryActivatesAndSummarises(t *testing.T) {
	svc := newDeviceService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterDeviceInput{DeviceID: "mesh-001", DeviceName: "Node"})
	require.NoError(t, err)

	battery := 76
	temp := 21.5
	lat, lon := 41.01, 28.95
	report, err := svc.ReportTelemetry(ctx, created.ID, TelemetryInput{
		BatteryLevel: &battery,
		Temperature:  &temp,
		LocationLat:  &lat,
		LocationLon:  &lon,
		RawData:      map[string]any{"packet": "pos"},
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, report.DeviceID)

	device, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.DeviceStatusActive, device.Status)
	require.Equal(t, 76, *device.BatteryLevel)
	require.NotNil(t, device.LastSeen)
	require.InDelta(t, 41.01, *device.LocationLat, 0.0001)
}

func TestDeviceTelemetryLowBatteryRaisesAlert(t *testing.T) {
	svc := newDeviceService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterDeviceInput{DeviceID: "mesh-001", DeviceName: "Node"})
	require.NoError(t, err)

	battery := 12
	_, err = svc.ReportTelemetry(ctx, created.ID, TelemetryInput{BatteryLevel: &battery})
	require.NoError(t, err)

	alerts, err := svc.ListAlerts(ctx, ListAlertsInput{DeviceID: created.ID, UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, models.AlertTypeLowBattery, alerts[0].AlertType)

	// A second low report does not duplicate the open alert.
	_, err = svc.ReportTelemetry(ctx, created.ID, TelemetryInput{BatteryLevel: &battery})
	require.NoError(t, err)
	alerts, err = svc.ListAlerts(ctx, ListAlertsInput{DeviceID: created.ID, UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestDeviceListTelemetryFilters(t *testing.T) {
	svc := newDeviceService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterDeviceInput{DeviceID: "mesh-001", DeviceName: "Node"})
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		_, err := svc.ReportTelemetry(ctx, created.ID, TelemetryInput{Timestamp: &ts})
		require.NoError(t, err)
	}

	all, err := svc.ListTelemetry(ctx, created.ID, ListTelemetryInput{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	// Newest first.
	require.True(t, all[0].Timestamp.After(all[4].Timestamp))

	limited, err := svc.ListTelemetry(ctx, created.ID, ListTelemetryInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)

	since := base.Add(3 * time.Minute)
	recent, err := svc.ListTelemetry(ctx, created.ID, ListTelemetryInput{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestDeviceResolveAlert(t *testing.T) {
	svc := newDeviceService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterDeviceInput{DeviceID: "mesh-001", DeviceName: "Node"})
	require.NoError(t, err)

	raised, err := svc.RaiseAlert(ctx, created.ID, RaiseAlertInput{
		AlertType: models.AlertTypeTemperature,
		Severity:  models.AlertSeverityCritical,
		Message:   "Cold chain breach",
	})
	require.NoError(t, err)
	require.False(t, raised.IsResolved)

	resolved, err := svc.ResolveAlert(ctx, raised.ID)
	require.NoError(t, err)
	require.True(t, resolved.IsResolved)
	require.NotNil(t, resolved.ResolvedAt)

	open, err := svc.ListAlerts(ctx, ListAlertsInput{DeviceID: created.ID, UnresolvedOnly: true})
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestDeviceMarkSilentOffline(t *testing.T) {
	svc := newDeviceService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterDeviceInput{DeviceID: "mesh-001", DeviceName: "Node"})
	require.NoError(t, err)

	old := time.Now().UTC().Add(-30 * time.Minute)
	require.NoError(t, svc.db.Model(&models.Device{}).Where("id = ?", created.ID).
		Updates(map[string]any{"status": models.DeviceStatusActive, "last_seen": old}).Error)

	changed, err := svc.MarkSilentOffline(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)

	device, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.DeviceStatusInactive, device.Status)

	alerts, err := svc.ListAlerts(ctx, ListAlertsInput{DeviceID: created.ID, UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, models.AlertTypeOffline, alerts[0].AlertType)
}

func TestDevicePurgeTelemetry(t *testing.T) {
	svc := newDeviceService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterDeviceInput{DeviceID: "mesh-001", DeviceName: "Node"})
	require.NoError(t, err)

	oldTS := time.Now().UTC().Add(-48 * time.Hour)
	newTS := time.Now().UTC()
	_, err = svc.ReportTelemetry(ctx, created.ID, TelemetryInput{Timestamp: &oldTS})
	require.NoError(t, err)
	_, err = svc.ReportTelemetry(ctx, created.ID, TelemetryInput{Timestamp: &newTS})
	require.NoError(t, err)

	removed, err := svc.PurgeTelemetryBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}
