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

// DriverDTO is the API-facing driver payload.
type DriverDTO struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone,omitempty"`
	TotalDeliveries int       `json:"total_deliveries"`
	Rating          float64   `json:"rating"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DriverInput carries driver attributes for create and update.
type DriverInput struct {
	Name   string
	Phone  string
	Rating *float64
}

// DriverService manages delivery drivers.
type DriverService struct {
	db *gorm.DB
}

// NewDriverService constructs a DriverService.
func NewDriverService(db *gorm.DB) (*DriverService, error) {
	if db == nil {
		return nil, errors.New("driver service: db is required")
	}
	return &DriverService{db: db}, nil
}

// Create registers a new driver.
func (s *DriverService) Create(ctx context.Context, input DriverInput) (*DriverDTO, error) {
	ctx = ensureContext(ctx)
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("driver service: name is required")
	}

	driver := models.Driver{
		Name:  name,
		Phone: strings.TrimSpace(input.Phone),
	}
	if input.Rating != nil {
		driver.Rating = *input.Rating
	}
	if err := s.db.WithContext(ctx).Create(&driver).Error; err != nil {
		return nil, fmt.Errorf("driver service: create driver: %w", err)
	}

	dto := mapDriver(driver)
	return &dto, nil
}

// List returns all drivers ordered by name.
func (s *DriverService) List(ctx context.Context, limit, offset int) ([]DriverDTO, error) {
	ctx = ensureContext(ctx)

	var rows []models.Driver
	if err := s.db.WithContext(ctx).
		Order("name ASC").
		Limit(clampLimit(limit, 50, 200)).
		Offset(max(0, offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("driver service: list drivers: %w", err)
	}

	out := make([]DriverDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDriver(row))
	}
	return out, nil
}

// Get returns a driver by ID.
func (s *DriverService) Get(ctx context.Context, id string) (*DriverDTO, error) {
	driver, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapDriver(*driver)
	return &dto, nil
}

// Update applies edits to a driver.
func (s *DriverService) Update(ctx context.Context, id string, input DriverInput) (*DriverDTO, error) {
	ctx = ensureContext(ctx)
	driver, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" {
		updates["name"] = name
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		updates["phone"] = phone
	}
	if input.Rating != nil {
		updates["rating"] = *input.Rating
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(driver).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("driver service: update driver: %w", err)
		}
	}

	return s.Get(ctx, driver.ID)
}

// Delete removes a driver. Baskets keep running with no assignee.
func (s *DriverService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	driver, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Basket{}).
			Where("driver_id = ?", driver.ID).
			Update("driver_id", nil).Error; err != nil {
			return fmt.Errorf("driver service: unassign baskets: %w", err)
		}
		if err := tx.Delete(driver).Error; err != nil {
			return fmt.Errorf("driver service: delete driver: %w", err)
		}
		return nil
	})
}

// RecordDelivery increments a driver's completed delivery counter.
func (s *DriverService) RecordDelivery(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	driver, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(driver).
		Update("total_deliveries", gorm.Expr("total_deliveries + 1")).Error; err != nil {
		return fmt.Errorf("driver service: record delivery: %w", err)
	}
	return nil
}

// Leaderboard returns drivers ranked by deliveries and rating.
func (s *DriverService) Leaderboard(ctx context.Context, limit int) ([]DriverDTO, error) {
	ctx = ensureContext(ctx)

	var rows []models.Driver
	if err := s.db.WithContext(ctx).
		Order("total_deliveries DESC, rating DESC").
		Limit(clampLimit(limit, 10, 100)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("driver service: leaderboard: %w", err)
	}

	out := make([]DriverDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDriver(row))
	}
	return out, nil
}

func (s *DriverService) load(ctx context.Context, id string) (*models.Driver, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("driver service: id is required")
	}

	var driver models.Driver
	if err := s.db.WithContext(ctx).First(&driver, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("driver service: load driver: %w", err)
	}
	return &driver, nil
}

func mapDriver(driver models.Driver) DriverDTO {
	return DriverDTO{
		ID:              driver.ID,
		Name:            driver.Name,
		Phone:           driver.Phone,
		TotalDeliveries: driver.TotalDeliveries,
		Rating:          driver.Rating,
		CreatedAt:       driver.CreatedAt,
		UpdatedAt:       driver.UpdatedAt,
	}
}
