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
)

// AlertDTO is the API-facing device alert payload.
type AlertDTO struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	AlertType  string         `json:"alert_type"`
	Severity   string         `json:"severity"`
	Message    string         `json:"message,omitempty"`
	IsResolved bool           `json:"is_resolved"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RaiseAlertInput describes a new alert condition.
type RaiseAlertInput struct {
	AlertType string
	Severity  string
	Message   string
	Metadata  map[string]any
}

// ListAlertsInput filters alert queries.
type ListAlertsInput struct {
	DeviceID       string
	Severity       string
	UnresolvedOnly bool
	Limit          int
	Offset         int
}

// RaiseAlert records an alert for a device unless an identical unresolved
// alert already exists, and broadcasts new alerts to the dashboard.
func (s *DeviceService) RaiseAlert(ctx context.Context, deviceRowID string, input RaiseAlertInput) (*AlertDTO, error) {
	ctx = ensureContext(ctx)
	deviceRowID = strings.TrimSpace(deviceRowID)
	if deviceRowID == "" {
		return nil, errors.New("device service: device id is required")
	}
	alertType := strings.TrimSpace(input.AlertType)
	if alertType == "" {
		return nil, errors.New("device service: alert type is required")
	}

	var existing models.DeviceAlert
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND alert_type = ? AND is_resolved = ?", deviceRowID, alertType, false).
		First(&existing).Error
	if err == nil {
		dto := mapAlert(existing)
		return &dto, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("device service: check open alerts: %w", err)
	}

	metadata, err := marshalJSONColumn(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("device service: marshal alert metadata: %w", err)
	}

	alert := models.DeviceAlert{
		DeviceID:  deviceRowID,
		AlertType: alertType,
		Severity:  defaultIfEmpty(strings.TrimSpace(input.Severity), models.AlertSeverityInfo),
		Message:   strings.TrimSpace(input.Message),
		Metadata:  metadata,
	}
	if err := s.db.WithContext(ctx).Create(&alert).Error; err != nil {
		return nil, fmt.Errorf("device service: create alert: %w", err)
	}

	dto := mapAlert(alert)
	if s.hub != nil {
		s.hub.BroadcastStream(realtime.StreamAlerts, realtime.Message{
			Event: realtime.EventAlertRaised,
			Data:  dto,
		})
	}
	return &dto, nil
}

// ListAlerts returns alerts matching the filters, newest first.
func (s *DeviceService) ListAlerts(ctx context.Context, input ListAlertsInput) ([]AlertDTO, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.DeviceAlert{}).Order("created_at DESC")
	if deviceID := strings.TrimSpace(input.DeviceID); deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}
	if severity := strings.TrimSpace(input.Severity); severity != "" {
		query = query.Where("severity = ?", severity)
	}
	if input.UnresolvedOnly {
		query = query.Where("is_resolved = ?", false)
	}

	var rows []models.DeviceAlert
	if err := query.
		Limit(clampLimit(input.Limit, 50, 200)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("device service: list alerts: %w", err)
	}

	out := make([]AlertDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapAlert(row))
	}
	return out, nil
}

// ResolveAlert marks an alert as handled and broadcasts the resolution.
func (s *DeviceService) ResolveAlert(ctx context.Context, alertID string) (*AlertDTO, error) {
	ctx = ensureContext(ctx)
	var alert models.DeviceAlert
	if err := s.db.WithContext(ctx).
		First(&alert, "id = ?", strings.TrimSpace(alertID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("device service: load alert: %w", err)
	}

	if alert.IsResolved {
		dto := mapAlert(alert)
		return &dto, nil
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&alert).
		Updates(map[string]any{"is_resolved": true, "resolved_at": now}).Error; err != nil {
		return nil, fmt.Errorf("device service: resolve alert: %w", err)
	}

	alert.IsResolved = true
	alert.ResolvedAt = &now

	dto := mapAlert(alert)
	if s.hub != nil {
		s.hub.BroadcastStream(realtime.StreamAlerts, realtime.Message{
			Event: realtime.EventAlertResolved,
			Data:  dto,
		})
	}
	return &dto, nil
}

func mapAlert(alert models.DeviceAlert) AlertDTO {
	return AlertDTO{
		ID:         alert.ID,
		DeviceID:   alert.DeviceID,
		AlertType:  alert.AlertType,
		Severity:   alert.Severity,
		Message:    alert.Message,
		IsResolved: alert.IsResolved,
		ResolvedAt: alert.ResolvedAt,
		Metadata:   decodeJSONColumn(alert.Metadata),
		CreatedAt:  alert.CreatedAt,
	}
}
