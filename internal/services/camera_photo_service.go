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

// PhotoDTO is the API-facing camera photo payload.
type PhotoDTO struct {
	ID           string         `json:"id"`
	CameraID     string         `json:"camera_id"`
	PhotoURL     string         `json:"photo_url"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	TakenAt      time.Time      `json:"taken_at"`
	CommandID    *string        `json:"command_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AddPhotoInput records a captured photo stored externally.
type AddPhotoInput struct {
	PhotoURL     string
	ThumbnailURL string
	TakenAt      *time.Time
	CommandID    *string
	Metadata     map[string]any
}

// AddPhoto records a photo for a camera.
func (s *CameraService) AddPhoto(ctx context.Context, cameraRowID string, input AddPhotoInput) (*PhotoDTO, error) {
	ctx = ensureContext(ctx)
	camera, err := s.load(ctx, cameraRowID)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSpace(input.PhotoURL)
	if url == "" {
		return nil, errors.New("camera service: photo url is required")
	}

	metadata, err := marshalJSONColumn(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("camera service: marshal photo metadata: %w", err)
	}

	takenAt := s.now().UTC()
	if input.TakenAt != nil && !input.TakenAt.IsZero() {
		takenAt = input.TakenAt.UTC()
	}

	photo := models.CameraPhoto{
		CameraID:     camera.ID,
		PhotoURL:     url,
		ThumbnailURL: strings.TrimSpace(input.ThumbnailURL),
		TakenAt:      takenAt,
		CommandID:    input.CommandID,
		Metadata:     metadata,
	}
	if err := s.db.WithContext(ctx).Create(&photo).Error; err != nil {
		return nil, fmt.Errorf("camera service: create photo: %w", err)
	}

	dto := mapPhoto(photo)
	return &dto, nil
}

// ListPhotos returns photos for a camera, newest first.
func (s *CameraService) ListPhotos(ctx context.Context, cameraRowID string, limit, offset int) ([]PhotoDTO, error) {
	ctx = ensureContext(ctx)
	camera, err := s.load(ctx, cameraRowID)
	if err != nil {
		return nil, err
	}

	var rows []models.CameraPhoto
	if err := s.db.WithContext(ctx).
		Where("camera_id = ?", camera.ID).
		Order("taken_at DESC").
		Limit(clampLimit(limit, 25, 100)).
		Offset(max(0, offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("camera service: list photos: %w", err)
	}

	out := make([]PhotoDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapPhoto(row))
	}
	return out, nil
}

// DeletePhoto removes a photo record.
func (s *CameraService) DeletePhoto(ctx context.Context, photoID string) error {
	ctx = ensureContext(ctx)
	var photo models.CameraPhoto
	if err := s.db.WithContext(ctx).
		First(&photo, "id = ?", strings.TrimSpace(photoID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("camera service: load photo: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&photo).Error; err != nil {
		return fmt.Errorf("camera service: delete photo: %w", err)
	}
	return nil
}

func mapPhoto(photo models.CameraPhoto) PhotoDTO {
	return PhotoDTO{
		ID:           photo.ID,
		CameraID:     photo.CameraID,
		PhotoURL:     photo.PhotoURL,
		ThumbnailURL: photo.ThumbnailURL,
		TakenAt:      photo.TakenAt,
		CommandID:    photo.CommandID,
		Metadata:     decodeJSONColumn(photo.Metadata),
		CreatedAt:    photo.CreatedAt,
	}
}
