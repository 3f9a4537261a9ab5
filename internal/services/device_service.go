package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/models"
	"github.com/fleetdeck-io/fleetdeck/internal/realtime"
	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
	"github.com/fleetdeck-io/fleetdeck/pkg/metrics"
)

// Battery percentage below which a low-battery alert is raised.
const lowBatteryThreshold = 20

// DeviceDTO is the API-facing device payload.
type DeviceDTO struct {
	ID              string         `json:"id"`
	DeviceID        string         `json:"device_id"`
	DeviceName      string         `json:"device_name"`
	DeviceType      string         `json:"device_type"`
	FirmwareVersion string         `json:"firmware_version,omitempty"`
	HardwareModel   string         `json:"hardware_model,omitempty"`
	MACAddress      string         `json:"mac_address,omitempty"`
	BasketID        *string        `json:"basket_id,omitempty"`
	Status          string         `json:"status"`
	BatteryLevel    *int           `json:"battery_level,omitempty"`
	SignalStrength  *int           `json:"signal_strength,omitempty"`
	LastSeen        *time.Time     `json:"last_seen,omitempty"`
	LocationLat     *float64       `json:"location_lat,omitempty"`
	LocationLon     *float64       `json:"location_lon,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// RegisterDeviceInput describes a new telemetry node registration.
type RegisterDeviceInput struct {
	DeviceID        string
	DeviceName      string
	DeviceType      string
	FirmwareVersion string
	HardwareModel   string
	MACAddress      string
	BasketID        *string
	Metadata        map[string]any
}

// UpdateDeviceInput carries operator-editable device fields.
type UpdateDeviceInput struct {
	DeviceName *string
	Status     *string
	BasketID   *string
	Metadata   map[string]any
}

// TelemetryInput is a raw telemetry report from a device.
type TelemetryInput struct {
	Timestamp      *time.Time
	BatteryLevel   *int
	SignalStrength *int
	Temperature    *float64
	LocationLat    *float64
	LocationLon    *float64
	Speed          *float64
	Altitude       *float64
	Satellites     *int
	Voltage        *float64
	Current        *float64
	RSSI           *int
	SNR            *float64
	RawData        map[string]any
}

// ListTelemetryInput filters telemetry queries.
type ListTelemetryInput struct {
	Since *time.Time
	Limit int
}

// TelemetryDTO is a stored telemetry report.
type TelemetryDTO struct {
	ID             string         `json:"id"`
	DeviceID       string         `json:"device_id"`
	Timestamp      time.Time      `json:"timestamp"`
	BatteryLevel   *int           `json:"battery_level,omitempty"`
	SignalStrength *int           `json:"signal_strength,omitempty"`
	Temperature    *float64       `json:"temperature,omitempty"`
	LocationLat    *float64       `json:"location_lat,omitempty"`
	LocationLon    *float64       `json:"location_lon,omitempty"`
	Speed          *float64       `json:"speed,omitempty"`
	Altitude       *float64       `json:"altitude,omitempty"`
	Satellites     *int           `json:"satellites,omitempty"`
	Voltage        *float64       `json:"voltage,omitempty"`
	Current        *float64       `json:"current,omitempty"`
	RSSI           *int           `json:"rssi,omitempty"`
	SNR            *float64       `json:"snr,omitempty"`
	RawData        map[string]any `json:"raw_data,omitempty"`
}

// DeviceService manages telemetry nodes, their reports, and alerts.
type DeviceService struct {
	db  *gorm.DB
	hub *realtime.Hub
	now func() time.Time
}

// NewDeviceService constructs a DeviceService.
func NewDeviceService(db *gorm.DB, hub *realtime.Hub) (*DeviceService, error) {
	if db == nil {
		return nil, errors.New("device service: db is required")
	}
	return &DeviceService{db: db, hub: hub, now: time.Now}, nil
}

// Register creates a device in provisioning state.
func (s *DeviceService) Register(ctx context.Context, input RegisterDeviceInput) (*DeviceDTO, error) {
	ctx = ensureContext(ctx)
	deviceID := strings.TrimSpace(input.DeviceID)
	if deviceID == "" {
		return nil, errors.New("device service: device id is required")
	}
	name := strings.TrimSpace(input.DeviceName)
	if name == "" {
		return nil, errors.New("device service: device name is required")
	}

	metadata, err := marshalJSONColumn(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("device service: marshal metadata: %w", err)
	}

	device := models.Device{
		DeviceID:        deviceID,
		DeviceName:      name,
		DeviceType:      defaultIfEmpty(strings.TrimSpace(input.DeviceType), "meshtastic"),
		FirmwareVersion: strings.TrimSpace(input.FirmwareVersion),
		HardwareModel:   strings.TrimSpace(input.HardwareModel),
		MACAddress:      strings.TrimSpace(input.MACAddress),
		BasketID:        input.BasketID,
		Status:          models.DeviceStatusProvisioning,
		Metadata:        metadata,
	}
	if err := s.db.WithContext(ctx).Create(&device).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.New("device.exists", "Device ID already registered", 409).WithInternal(err)
		}
		return nil, fmt.Errorf("device service: create device: %w", err)
	}

	dto := mapDevice(device)
	return &dto, nil
}

// List returns devices, optionally filtered by status or basket.
func (s *DeviceService) List(ctx context.Context, status, basketID string, limit, offset int) ([]DeviceDTO, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Device{}).Order("device_name ASC")
	if status = strings.TrimSpace(status); status != "" {
		query = query.Where("status = ?", status)
	}
	if basketID = strings.TrimSpace(basketID); basketID != "" {
		query = query.Where("basket_id = ?", basketID)
	}

	var rows []models.Device
	if err := query.
		Limit(clampLimit(limit, 50, 200)).
		Offset(max(0, offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("device service: list devices: %w", err)
	}

	out := make([]DeviceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDevice(row))
	}
	return out, nil
}

// Get returns a device by its row ID or hardware device ID.
func (s *DeviceService) Get(ctx context.Context, id string) (*DeviceDTO, error) {
	device, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapDevice(*device)
	return &dto, nil
}

// Update applies operator edits to a device.
func (s *DeviceService) Update(ctx context.Context, id string, input UpdateDeviceInput) (*DeviceDTO, error) {
	ctx = ensureContext(ctx)
	device, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.DeviceName != nil {
		name := strings.TrimSpace(*input.DeviceName)
		if name == "" {
			return nil, errors.New("device service: device name cannot be empty")
		}
		updates["device_name"] = name
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if !validDeviceStatus(status) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown device status %q", status))
		}
		updates["status"] = status
	}
	if input.BasketID != nil {
		if *input.BasketID == "" {
			updates["basket_id"] = nil
		} else {
			updates["basket_id"] = *input.BasketID
		}
	}
	if input.Metadata != nil {
		metadata, err := marshalJSONColumn(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("device service: marshal metadata: %w", err)
		}
		updates["metadata"] = metadata
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(device).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("device service: update device: %w", err)
		}
	}

	return s.Get(ctx, device.ID)
}

// Delete removes a device along with its telemetry history and alerts.
func (s *DeviceService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	device, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", device.ID).Delete(&models.DeviceTelemetry{}).Error; err != nil {
			return fmt.Errorf("device service: delete telemetry: %w", err)
		}
		if err := tx.Where("device_id = ?", device.ID).Delete(&models.DeviceAlert{}).Error; err != nil {
			return fmt.Errorf("device service: delete alerts: %w", err)
		}
		if err := tx.Where("device_id = ?", device.ID).Delete(&models.DeviceCommand{}).Error; err != nil {
			return fmt.Errorf("device service: delete commands: %w", err)
		}
		if err := tx.Delete(device).Error; err != nil {
			return fmt.Errorf("device service: delete device: %w", err)
		}
		return nil
	})
}

// ReportTelemetry stores a telemetry report, refreshes the device summary
// fields, and broadcasts the report to dashboard subscribers. A device in
// provisioning flips to active on its first report.
func (s *DeviceService) ReportTelemetry(ctx context.Context, deviceID string, input TelemetryInput) (*TelemetryDTO, error) {
	ctx = ensureContext(ctx)
	device, err := s.load(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	timestamp := now
	if input.Timestamp != nil && !input.Timestamp.IsZero() {
		timestamp = input.Timestamp.UTC()
	}

	raw, err := marshalJSONColumn(input.RawData)
	if err != nil {
		return nil, fmt.Errorf("device service: marshal raw data: %w", err)
	}

	report := models.DeviceTelemetry{
		DeviceID:       device.ID,
		Timestamp:      timestamp,
		BatteryLevel:   input.BatteryLevel,
		SignalStrength: input.SignalStrength,
		Temperature:    input.Temperature,
		LocationLat:    input.LocationLat,
		LocationLon:    input.LocationLon,
		Speed:          input.Speed,
		Altitude:       input.Altitude,
		Satellites:     input.Satellites,
		Voltage:        input.Voltage,
		Current:        input.Current,
		RSSI:           input.RSSI,
		SNR:            input.SNR,
		RawData:        raw,
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, fmt.Errorf("device service: create telemetry: %w", err)
	}

	updates := map[string]any{"last_seen": now}
	if device.Status == models.DeviceStatusProvisioning || device.Status == models.DeviceStatusInactive {
		updates["status"] = models.DeviceStatusActive
	}
	if input.BatteryLevel != nil {
		updates["battery_level"] = *input.BatteryLevel
	}
	if input.SignalStrength != nil {
		updates["signal_strength"] = *input.SignalStrength
	}
	if input.LocationLat != nil {
		updates["location_lat"] = *input.LocationLat
	}
	if input.LocationLon != nil {
		updates["location_lon"] = *input.LocationLon
	}
	if err := s.db.WithContext(ctx).Model(device).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("device service: update summary: %w", err)
	}

	metrics.TelemetryReports.WithLabelValues(device.DeviceType).Inc()

	if input.BatteryLevel != nil && *input.BatteryLevel <= lowBatteryThreshold {
		_, _ = s.RaiseAlert(ctx, device.ID, RaiseAlertInput{
			AlertType: models.AlertTypeLowBattery,
			Severity:  models.AlertSeverityWarning,
			Message:   fmt.Sprintf("Battery at %d%%", *input.BatteryLevel),
		})
	}

	dto := mapTelemetry(report)
	if s.hub != nil {
		s.hub.BroadcastStream(realtime.StreamTelemetry, realtime.Message{
			Event: realtime.EventTelemetryReport,
			Data:  dto,
			Meta:  map[string]any{"device_id": device.DeviceID},
		})
	}
	return &dto, nil
}

// ListTelemetry returns stored reports for a device, newest first.
func (s *DeviceService) ListTelemetry(ctx context.Context, deviceID string, input ListTelemetryInput) ([]TelemetryDTO, error) {
	ctx = ensureContext(ctx)
	device, err := s.load(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("device_id = ?", device.ID).
		Order("timestamp DESC").
		Limit(clampLimit(input.Limit, 100, 1000))
	if input.Since != nil && !input.Since.IsZero() {
		query = query.Where("timestamp >= ?", input.Since.UTC())
	}

	var rows []models.DeviceTelemetry
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("device service: list telemetry: %w", err)
	}

	out := make([]TelemetryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapTelemetry(row))
	}
	return out, nil
}

// PurgeTelemetryBefore removes reports older than the cutoff.
func (s *DeviceService) PurgeTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("timestamp < ?", cutoff.UTC()).
		Delete(&models.DeviceTelemetry{})
	if result.Error != nil {
		return 0, fmt.Errorf("device service: purge telemetry: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkSilentOffline raises offline alerts for active devices that have
// not reported within the threshold. Returns the number affected.
func (s *DeviceService) MarkSilentOffline(ctx context.Context, silentAfter time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	cutoff := s.now().UTC().Add(-silentAfter)

	var silent []models.Device
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.DeviceStatusActive).
		Where("last_seen IS NULL OR last_seen < ?", cutoff).
		Find(&silent).Error; err != nil {
		return 0, fmt.Errorf("device service: find silent devices: %w", err)
	}

	for _, device := range silent {
		if err := s.db.WithContext(ctx).Model(&device).
			Update("status", models.DeviceStatusInactive).Error; err != nil {
			return 0, fmt.Errorf("device service: mark inactive: %w", err)
		}
		_, _ = s.RaiseAlert(ctx, device.ID, RaiseAlertInput{
			AlertType: models.AlertTypeOffline,
			Severity:  models.AlertSeverityWarning,
			Message:   fmt.Sprintf("Device %s stopped reporting", device.DeviceID),
		})
	}
	return int64(len(silent)), nil
}

func (s *DeviceService) load(ctx context.Context, id string) (*models.Device, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("device service: id is required")
	}

	var device models.Device
	if err := s.db.WithContext(ctx).
		Where("id = ? OR device_id = ?", id, id).
		First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("device service: load device: %w", err)
	}
	return &device, nil
}

func validDeviceStatus(status string) bool {
	switch status {
	case models.DeviceStatusActive, models.DeviceStatusInactive, models.DeviceStatusProvisioning,
		models.DeviceStatusMaintenance, models.DeviceStatusDecommissioned:
		return true
	}
	return false
}

func mapDevice(device models.Device) DeviceDTO {
	return DeviceDTO{
		ID:              device.ID,
		DeviceID:        device.DeviceID,
		DeviceName:      device.DeviceName,
		DeviceType:      device.DeviceType,
		FirmwareVersion: device.FirmwareVersion,
		HardwareModel:   device.HardwareModel,
		MACAddress:      device.MACAddress,
		BasketID:        device.BasketID,
		Status:          device.Status,
		BatteryLevel:    device.BatteryLevel,
		SignalStrength:  device.SignalStrength,
		LastSeen:        device.LastSeen,
		LocationLat:     device.LocationLat,
		LocationLon:     device.LocationLon,
		Metadata:        decodeJSONColumn(device.Metadata),
		CreatedAt:       device.CreatedAt,
		UpdatedAt:       device.UpdatedAt,
	}
}

func mapTelemetry(report models.DeviceTelemetry) TelemetryDTO {
	return TelemetryDTO{
		ID:             report.ID,
		DeviceID:       report.DeviceID,
		Timestamp:      report.Timestamp,
		BatteryLevel:   report.BatteryLevel,
		SignalStrength: report.SignalStrength,
		Temperature:    report.Temperature,
		LocationLat:    report.LocationLat,
		LocationLon:    report.LocationLon,
		Speed:          report.Speed,
		Altitude:       report.Altitude,
		Satellites:     report.Satellites,
		Voltage:        report.Voltage,
		Current:        report.Current,
		RSSI:           report.RSSI,
		SNR:            report.SNR,
		RawData:        decodeJSONColumn(report.RawData),
	}
}
