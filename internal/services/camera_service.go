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
	"github.com/fleetdeck-io/fleetdeck/pkg/crypto"
	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
)

const cameraTokenBytes = 32

// CameraDTO is the API-facing camera payload. The device API token is
// only populated on registration and rotation.
type CameraDTO struct {
	ID              string         `json:"id"`
	CameraID        string         `json:"camera_id"`
	CameraName      string         `json:"camera_name"`
	DeviceType      string         `json:"device_type"`
	FirmwareVersion string         `json:"firmware_version,omitempty"`
	AssignedTo      string         `json:"assigned_to,omitempty"`
	Status          string         `json:"status"`
	BatteryLevel    *int           `json:"battery_level,omitempty"`
	WifiSignal      *int           `json:"wifi_signal,omitempty"`
	LocationLat     *float64       `json:"location_lat,omitempty"`
	LocationLon     *float64       `json:"location_lon,omitempty"`
	LastSeen        *time.Time     `json:"last_seen,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	APIToken        string         `json:"api_token,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// RegisterCameraInput describes a new camera registration.
type RegisterCameraInput struct {
	CameraID        string
	CameraName      string
	DeviceType      string
	FirmwareVersion string
	AssignedTo      string
	Metadata        map[string]any
}

// UpdateCameraInput carries operator-editable camera fields. Nil pointers
// leave the stored value untouched.
type UpdateCameraInput struct {
	CameraName *string
	AssignedTo *string
	Metadata   map[string]any
}

// CameraHeartbeatInput is the device-reported status payload.
type CameraHeartbeatInput struct {
	Status          string
	BatteryLevel    *int
	WifiSignal      *int
	LocationLat     *float64
	LocationLon     *float64
	FirmwareVersion string
}

// ListCamerasInput filters camera listings.
type ListCamerasInput struct {
	Status string
	Limit  int
	Offset int
}

// CameraService manages the camera fleet.
type CameraService struct {
	db  *gorm.DB
	hub *realtime.Hub
	now func() time.Time
}

// NewCameraService constructs a CameraService. The hub may be nil in
// contexts that do not broadcast.
func NewCameraService(db *gorm.DB, hub *realtime.Hub) (*CameraService, error) {
	if db == nil {
		return nil, errors.New("camera service: db is required")
	}
	return &CameraService{db: db, hub: hub, now: time.Now}, nil
}

// Register creates a camera and issues its device API token. The token is
// returned once; it is not included in subsequent reads.
func (s *CameraService) Register(ctx context.Context, input RegisterCameraInput) (*CameraDTO, error) {
	ctx = ensureContext(ctx)
	cameraID := strings.TrimSpace(input.CameraID)
	if cameraID == "" {
		return nil, errors.New("camera service: camera id is required")
	}
	name := strings.TrimSpace(input.CameraName)
	if name == "" {
		return nil, errors.New("camera service: camera name is required")
	}

	token, err := crypto.GenerateToken(cameraTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("camera service: generate token: %w", err)
	}

	metadata, err := marshalJSONColumn(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("camera service: marshal metadata: %w", err)
	}

	camera := models.Camera{
		CameraID:        cameraID,
		CameraName:      name,
		DeviceType:      defaultIfEmpty(strings.TrimSpace(input.DeviceType), "esp32-cam"),
		FirmwareVersion: strings.TrimSpace(input.FirmwareVersion),
		AssignedTo:      strings.TrimSpace(input.AssignedTo),
		Status:          models.CameraStatusOffline,
		APIToken:        token,
		Metadata:        metadata,
	}

	if err := s.db.WithContext(ctx).Create(&camera).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.New("camera.exists", "Camera ID already registered", 409).WithInternal(err)
		}
		return nil, fmt.Errorf("camera service: create camera: %w", err)
	}

	dto := mapCamera(camera)
	dto.APIToken = token
	return &dto, nil
}

// List returns cameras, optionally filtered by status.
func (s *CameraService) List(ctx context.Context, input ListCamerasInput) ([]CameraDTO, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Camera{}).Order("camera_name ASC")
	if status := strings.TrimSpace(input.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var rows []models.Camera
	if err := query.
		Limit(clampLimit(input.Limit, 50, 200)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("camera service: list cameras: %w", err)
	}

	out := make([]CameraDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapCamera(row))
	}
	return out, nil
}

// Get returns a camera by its row ID or device-facing camera ID.
func (s *CameraService) Get(ctx context.Context, id string) (*CameraDTO, error) {
	camera, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapCamera(*camera)
	return &dto, nil
}

// Update applies operator edits to a camera.
func (s *CameraService) Update(ctx context.Context, id string, input UpdateCameraInput) (*CameraDTO, error) {
	ctx = ensureContext(ctx)
	camera, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.CameraName != nil {
		name := strings.TrimSpace(*input.CameraName)
		if name == "" {
			return nil, errors.New("camera service: camera name cannot be empty")
		}
		updates["camera_name"] = name
	}
	if input.AssignedTo != nil {
		updates["assigned_to"] = strings.TrimSpace(*input.AssignedTo)
	}
	if input.Metadata != nil {
		metadata, err := marshalJSONColumn(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("camera service: marshal metadata: %w", err)
		}
		updates["metadata"] = metadata
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(camera).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("camera service: update camera: %w", err)
		}
	}

	return s.Get(ctx, camera.ID)
}

// Delete removes a camera and its queued commands.
func (s *CameraService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	camera, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("camera_id = ?", camera.ID).Delete(&models.CameraCommand{}).Error; err != nil {
			return fmt.Errorf("camera service: delete commands: %w", err)
		}
		if err := tx.Where("camera_id = ?", camera.ID).Delete(&models.CameraPhoto{}).Error; err != nil {
			return fmt.Errorf("camera service: delete photos: %w", err)
		}
		if err := tx.Delete(camera).Error; err != nil {
			return fmt.Errorf("camera service: delete camera: %w", err)
		}
		return nil
	})
}

// RotateToken issues a replacement device API token.
func (s *CameraService) RotateToken(ctx context.Context, id string) (*CameraDTO, error) {
	ctx = ensureContext(ctx)
	camera, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	token, err := crypto.GenerateToken(cameraTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("camera service: generate token: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(camera).
		Update("api_token", token).Error; err != nil {
		return nil, fmt.Errorf("camera service: rotate token: %w", err)
	}

	camera.APIToken = token
	dto := mapCamera(*camera)
	dto.APIToken = token
	return &dto, nil
}

// Heartbeat records a device-reported status update and refreshes the
// last-seen timestamp. The change is broadcast to dashboard subscribers.
func (s *CameraService) Heartbeat(ctx context.Context, cameraRowID string, input CameraHeartbeatInput) (*CameraDTO, error) {
	ctx = ensureContext(ctx)
	camera, err := s.load(ctx, cameraRowID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	updates := map[string]any{"last_seen": now}

	if status := strings.TrimSpace(input.Status); status != "" {
		if !validCameraStatus(status) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown camera status %q", status))
		}
		updates["status"] = status
	}
	if input.BatteryLevel != nil {
		updates["battery_level"] = *input.BatteryLevel
	}
	if input.WifiSignal != nil {
		updates["wifi_signal"] = *input.WifiSignal
	}
	if input.LocationLat != nil {
		updates["location_lat"] = *input.LocationLat
	}
	if input.LocationLon != nil {
		updates["location_lon"] = *input.LocationLon
	}
	if fw := strings.TrimSpace(input.FirmwareVersion); fw != "" {
		updates["firmware_version"] = fw
	}

	if err := s.db.WithContext(ctx).Model(camera).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("camera service: record heartbeat: %w", err)
	}

	dto, err := s.Get(ctx, camera.ID)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastStream(realtime.StreamCameras, realtime.Message{
			Event: realtime.EventCameraStatus,
			Data:  dto,
		})
	}
	return dto, nil
}

// MarkStaleOffline flips cameras that have not reported within the
// threshold to offline. Returns the number of cameras changed.
func (s *CameraService) MarkStaleOffline(ctx context.Context, staleAfter time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	cutoff := s.now().UTC().Add(-staleAfter)

	result := s.db.WithContext(ctx).Model(&models.Camera{}).
		Where("status = ?", models.CameraStatusOnline).
		Where("last_seen IS NULL OR last_seen < ?", cutoff).
		Update("status", models.CameraStatusOffline)
	if result.Error != nil {
		return 0, fmt.Errorf("camera service: mark stale offline: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *CameraService) load(ctx context.Context, id string) (*models.Camera, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("camera service: id is required")
	}

	var camera models.Camera
	if err := s.db.WithContext(ctx).
		Where("id = ? OR camera_id = ?", id, id).
		First(&camera).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("camera service: load camera: %w", err)
	}
	return &camera, nil
}

func validCameraStatus(status string) bool {
	switch status {
	case models.CameraStatusOnline, models.CameraStatusOffline, models.CameraStatusBusy, models.CameraStatusError:
		return true
	}
	return false
}

func mapCamera(camera models.Camera) CameraDTO {
	return CameraDTO{
		ID:              camera.ID,
		CameraID:        camera.CameraID,
		CameraName:      camera.CameraName,
		DeviceType:      camera.DeviceType,
		FirmwareVersion: camera.FirmwareVersion,
		AssignedTo:      camera.AssignedTo,
		Status:          camera.Status,
		BatteryLevel:    camera.BatteryLevel,
		WifiSignal:      camera.WifiSignal,
		LocationLat:     camera.LocationLat,
		LocationLon:     camera.LocationLon,
		LastSeen:        camera.LastSeen,
		Metadata:        decodeJSONColumn(camera.Metadata),
		CreatedAt:       camera.CreatedAt,
		UpdatedAt:       camera.UpdatedAt,
	}
}
