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

// DefaultCommandTimeout bounds how long a dispatched command may stay
// unanswered before maintenance marks it timed out.
const DefaultCommandTimeout = 2 * time.Minute

// CommandDTO is the API-facing camera command payload.
type CommandDTO struct {
	ID             string         `json:"id"`
	CameraID       string         `json:"camera_id"`
	CommandType    string         `json:"command_type"`
	CommandPayload map[string]any `json:"command_payload,omitempty"`
	Status         string         `json:"status"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Response       map[string]any `json:"response,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// QueueCommandInput describes a command to enqueue for a camera.
type QueueCommandInput struct {
	CameraID    string
	CommandType string
	Payload     map[string]any
}

// CompleteCommandInput is the device-reported command outcome.
type CompleteCommandInput struct {
	Success      bool
	Response     map[string]any
	ErrorMessage string
}

// CameraCommandService manages the per-camera command queue polled by
// devices.
type CameraCommandService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCameraCommandService constructs a CameraCommandService.
func NewCameraCommandService(db *gorm.DB) (*CameraCommandService, error) {
	if db == nil {
		return nil, errors.New("camera command service: db is required")
	}
	return &CameraCommandService{db: db, now: time.Now}, nil
}

// Queue enqueues a command for a camera.
func (s *CameraCommandService) Queue(ctx context.Context, input QueueCommandInput) (*CommandDTO, error) {
	ctx = ensureContext(ctx)
	cameraID := strings.TrimSpace(input.CameraID)
	if cameraID == "" {
		return nil, errors.New("camera command service: camera id is required")
	}
	commandType := strings.TrimSpace(input.CommandType)
	if !models.ValidCommandType(commandType) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown command type %q", commandType))
	}

	var camera models.Camera
	if err := s.db.WithContext(ctx).
		Where("id = ? OR camera_id = ?", cameraID, cameraID).
		First(&camera).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("camera command service: load camera: %w", err)
	}

	payload, err := marshalJSONColumn(input.Payload)
	if err != nil {
		return nil, fmt.Errorf("camera command service: marshal payload: %w", err)
	}

	command := models.CameraCommand{
		CameraID:       camera.ID,
		CommandType:    commandType,
		CommandPayload: payload,
		Status:         models.CommandStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&command).Error; err != nil {
		return nil, fmt.Errorf("camera command service: create command: %w", err)
	}

	dto := mapCommand(command)
	return &dto, nil
}

// ListForCamera returns recent commands for a camera, newest first.
func (s *CameraCommandService) ListForCamera(ctx context.Context, cameraRowID string, limit int) ([]CommandDTO, error) {
	ctx = ensureContext(ctx)
	cameraRowID = strings.TrimSpace(cameraRowID)
	if cameraRowID == "" {
		return nil, errors.New("camera command service: camera id is required")
	}

	var rows []models.CameraCommand
	if err := s.db.WithContext(ctx).
		Where("camera_id = ?", cameraRowID).
		Order("created_at DESC").
		Limit(clampLimit(limit, 25, 100)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("camera command service: list commands: %w", err)
	}

	out := make([]CommandDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapCommand(row))
	}
	return out, nil
}

// PollPending hands the oldest pending commands to a device and marks
// them sent. Devices call this on their heartbeat interval.
func (s *CameraCommandService) PollPending(ctx context.Context, cameraRowID string, limit int) ([]CommandDTO, error) {
	ctx = ensureContext(ctx)
	cameraRowID = strings.TrimSpace(cameraRowID)
	if cameraRowID == "" {
		return nil, errors.New("camera command service: camera id is required")
	}

	now := s.now().UTC()
	var rows []models.CameraCommand

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("camera_id = ? AND status = ?", cameraRowID, models.CommandStatusPending).
			Order("created_at ASC").
			Limit(clampLimit(limit, 10, 50)).
			Find(&rows).Error; err != nil {
			return fmt.Errorf("camera command service: load pending: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		if err := tx.Model(&models.CameraCommand{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"status": models.CommandStatusSent, "sent_at": now}).Error; err != nil {
			return fmt.Errorf("camera command service: mark sent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]CommandDTO, 0, len(rows))
	for _, row := range rows {
		row.Status = models.CommandStatusSent
		row.SentAt = &now
		out = append(out, mapCommand(row))
	}
	return out, nil
}

// Complete records the device-reported outcome of a dispatched command.
func (s *CameraCommandService) Complete(ctx context.Context, commandID string, input CompleteCommandInput) (*CommandDTO, error) {
	ctx = ensureContext(ctx)
	var command models.CameraCommand
	if err := s.db.WithContext(ctx).
		First(&command, "id = ?", strings.TrimSpace(commandID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("camera command service: load command: %w", err)
	}

	if command.Status != models.CommandStatusPending && command.Status != models.CommandStatusSent {
		return nil, apperrors.New("command.finalized", "Command already finalized", 409)
	}

	response, err := marshalJSONColumn(input.Response)
	if err != nil {
		return nil, fmt.Errorf("camera command service: marshal response: %w", err)
	}

	now := s.now().UTC()
	status := models.CommandStatusCompleted
	if !input.Success {
		status = models.CommandStatusFailed
	}

	updates := map[string]any{
		"status":        status,
		"completed_at":  now,
		"response":      response,
		"error_message": strings.TrimSpace(input.ErrorMessage),
	}
	if err := s.db.WithContext(ctx).Model(&command).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("camera command service: complete command: %w", err)
	}

	command.Status = status
	command.CompletedAt = &now
	command.Response = response
	command.ErrorMessage = strings.TrimSpace(input.ErrorMessage)

	dto := mapCommand(command)
	return &dto, nil
}

// ExpireStale marks sent commands older than the timeout as timed out.
func (s *CameraCommandService) ExpireStale(ctx context.Context, timeout time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	cutoff := s.now().UTC().Add(-timeout)

	result := s.db.WithContext(ctx).Model(&models.CameraCommand{}).
		Where("status = ? AND sent_at < ?", models.CommandStatusSent, cutoff).
		Update("status", models.CommandStatusTimeout)
	if result.Error != nil {
		return 0, fmt.Errorf("camera command service: expire stale: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func mapCommand(command models.CameraCommand) CommandDTO {
	return CommandDTO{
		ID:             command.ID,
		CameraID:       command.CameraID,
		CommandType:    command.CommandType,
		CommandPayload: decodeJSONColumn(command.CommandPayload),
		Status:         command.Status,
		SentAt:         command.SentAt,
		CompletedAt:    command.CompletedAt,
		Response:       decodeJSONColumn(command.Response),
		ErrorMessage:   command.ErrorMessage,
		CreatedAt:      command.CreatedAt,
	}
}
