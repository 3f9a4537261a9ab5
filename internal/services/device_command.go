package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/models"
	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
)

// DeviceCommandDTO is the API-facing device command payload.
type DeviceCommandDTO struct {
	ID             string         `json:"id"`
	DeviceID       string         `json:"device_id"`
	CommandType    string         `json:"command_type"`
	CommandPayload map[string]any `json:"command_payload,omitempty"`
	Status         string         `json:"status"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	Response       map[string]any `json:"response,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SendDeviceCommandInput describes a command to queue for a device.
type SendDeviceCommandInput struct {
	CommandType string
	Payload     map[string]any
}

// ListDeviceCommandsInput filters command listings.
type ListDeviceCommandsInput struct {
	Status string
	Limit  int
}

// AckDeviceCommandInput is the reported progress of a queued command.
type AckDeviceCommandInput struct {
	Status       string
	Response     map[string]any
	ErrorMessage string
}

// SendCommand queues a command for a device. Inactive and decommissioned
// devices cannot receive commands.
func (s *DeviceService) SendCommand(ctx context.Context, deviceID string, input SendDeviceCommandInput) (*DeviceCommandDTO, error) {
	ctx = ensureContext(ctx)
	device, err := s.load(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	commandType := strings.TrimSpace(input.CommandType)
	if commandType == "" {
		return nil, errors.New("device service: command type is required")
	}
	if device.Status == models.DeviceStatusDecommissioned || device.Status == models.DeviceStatusInactive {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("cannot send commands to %s devices", device.Status))
	}

	payload, err := marshalJSONColumn(input.Payload)
	if err != nil {
		return nil, fmt.Errorf("device service: marshal payload: %w", err)
	}

	command := models.DeviceCommand{
		DeviceID:       device.ID,
		CommandType:    commandType,
		CommandPayload: payload,
		Status:         models.CommandStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&command).Error; err != nil {
		return nil, fmt.Errorf("device service: create command: %w", err)
	}

	dto := mapDeviceCommand(command)
	return &dto, nil
}

// ListCommands returns recent commands for a device, newest first,
// optionally filtered by status.
func (s *DeviceService) ListCommands(ctx context.Context, deviceID string, input ListDeviceCommandsInput) ([]DeviceCommandDTO, error) {
	ctx = ensureContext(ctx)
	device, err := s.load(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("device_id = ?", device.ID).
		Order("created_at DESC").
		Limit(clampLimit(input.Limit, 50, 200))
	if status := strings.TrimSpace(input.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var rows []models.DeviceCommand
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("device service: list commands: %w", err)
	}

	out := make([]DeviceCommandDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDeviceCommand(row))
	}
	return out, nil
}

// AckCommand records delivery progress for a command: sent when the node
// was reached, acknowledged when it confirmed, failed on error.
func (s *DeviceService) AckCommand(ctx context.Context, commandID string, input AckDeviceCommandInput) (*DeviceCommandDTO, error) {
	ctx = ensureContext(ctx)
	var command models.DeviceCommand
	if err := s.db.WithContext(ctx).
		First(&command, "id = ?", strings.TrimSpace(commandID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("device service: load command: %w", err)
	}

	status := strings.TrimSpace(input.Status)
	switch status {
	case models.CommandStatusSent, models.CommandStatusAcknowledged, models.CommandStatusFailed:
	default:
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown command status %q", status))
	}

	response, err := marshalJSONColumn(input.Response)
	if err != nil {
		return nil, fmt.Errorf("device service: marshal response: %w", err)
	}

	now := s.now().UTC()
	updates := map[string]any{
		"status":        status,
		"error_message": strings.TrimSpace(input.ErrorMessage),
	}
	if input.Response != nil {
		updates["response"] = response
	}
	switch status {
	case models.CommandStatusSent:
		updates["sent_at"] = now
		command.SentAt = &now
	case models.CommandStatusAcknowledged:
		updates["acknowledged_at"] = now
		command.AcknowledgedAt = &now
	}
	if err := s.db.WithContext(ctx).Model(&command).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("device service: update command: %w", err)
	}

	command.Status = status
	if input.Response != nil {
		command.Response = response
	}
	command.ErrorMessage = strings.TrimSpace(input.ErrorMessage)

	dto := mapDeviceCommand(command)
	return &dto, nil
}

func mapDeviceCommand(command models.DeviceCommand) DeviceCommandDTO {
	return DeviceCommandDTO{
		ID:             command.ID,
		DeviceID:       command.DeviceID,
		CommandType:    command.CommandType,
		CommandPayload: decodeJSONColumn(command.CommandPayload),
		Status:         command.Status,
		SentAt:         command.SentAt,
		AcknowledgedAt: command.AcknowledgedAt,
		Response:       decodeJSONColumn(command.Response),
		ErrorMessage:   command.ErrorMessage,
		CreatedAt:      command.CreatedAt,
	}
}
