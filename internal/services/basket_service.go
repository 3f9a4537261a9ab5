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

// BasketDTO is the API-facing basket payload.
type BasketDTO struct {
	ID           string     `json:"id"`
	Lat          float64    `json:"lat"`
	Lon          float64    `json:"lon"`
	Temperature  *float64   `json:"temperature,omitempty"`
	DriverID     *string    `json:"driver_id,omitempty"`
	DriverName   string     `json:"driver_name,omitempty"`
	Status       string     `json:"status"`
	Cost         *float64   `json:"cost,omitempty"`
	TimeEstimate string     `json:"time_estimate,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CreateBasketInput describes a new basket.
type CreateBasketInput struct {
	Lat          float64
	Lon          float64
	Temperature  *float64
	DriverID     *string
	Cost         *float64
	TimeEstimate string
}

// UpdateBasketInput carries basket updates: position, status, and
// assignment. Nil pointers leave stored values untouched.
type UpdateBasketInput struct {
	Lat          *float64
	Lon          *float64
	Temperature  *float64
	DriverID     *string
	Status       *string
	Cost         *float64
	TimeEstimate *string
}

// BasketService manages tracked delivery baskets. Every change is
// broadcast on the baskets stream so dashboards update live.
type BasketService struct {
	db      *gorm.DB
	hub     *realtime.Hub
	drivers *DriverService
}

// NewBasketService constructs a BasketService.
func NewBasketService(db *gorm.DB, hub *realtime.Hub, drivers *DriverService) (*BasketService, error) {
	if db == nil {
		return nil, errors.New("basket service: db is required")
	}
	return &BasketService{db: db, hub: hub, drivers: drivers}, nil
}

// Create registers a basket.
func (s *BasketService) Create(ctx context.Context, input CreateBasketInput) (*BasketDTO, error) {
	ctx = ensureContext(ctx)

	basket := models.Basket{
		Lat:          input.Lat,
		Lon:          input.Lon,
		Temperature:  input.Temperature,
		DriverID:     input.DriverID,
		Status:       models.BasketStatusActive,
		Cost:         input.Cost,
		TimeEstimate: strings.TrimSpace(input.TimeEstimate),
	}
	if err := s.db.WithContext(ctx).Create(&basket).Error; err != nil {
		return nil, fmt.Errorf("basket service: create basket: %w", err)
	}

	dto, err := s.Get(ctx, basket.ID)
	if err != nil {
		return nil, err
	}
	s.broadcast(*dto)
	return dto, nil
}

// List returns baskets, optionally filtered by status.
func (s *BasketService) List(ctx context.Context, status string, limit, offset int) ([]BasketDTO, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Basket{}).
		Preload("Driver").
		Order("created_at DESC")
	if status = strings.TrimSpace(status); status != "" {
		query = query.Where("status = ?", status)
	}

	var rows []models.Basket
	if err := query.
		Limit(clampLimit(limit, 50, 200)).
		Offset(max(0, offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("basket service: list baskets: %w", err)
	}

	out := make([]BasketDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapBasket(row))
	}
	return out, nil
}

// Get returns a basket by ID.
func (s *BasketService) Get(ctx context.Context, id string) (*BasketDTO, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("basket service: id is required")
	}

	var basket models.Basket
	if err := s.db.WithContext(ctx).
		Preload("Driver").
		First(&basket, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("basket service: load basket: %w", err)
	}

	dto := mapBasket(basket)
	return &dto, nil
}

// Update applies changes to a basket and broadcasts the result. Marking a
// basket delivered credits the assigned driver.
func (s *BasketService) Update(ctx context.Context, id string, input UpdateBasketInput) (*BasketDTO, error) {
	ctx = ensureContext(ctx)

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Lat != nil {
		updates["lat"] = *input.Lat
	}
	if input.Lon != nil {
		updates["lon"] = *input.Lon
	}
	if input.Temperature != nil {
		updates["temperature"] = *input.Temperature
	}
	if input.DriverID != nil {
		if *input.DriverID == "" {
			updates["driver_id"] = nil
		} else {
			updates["driver_id"] = *input.DriverID
		}
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if !validBasketStatus(status) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown basket status %q", status))
		}
		updates["status"] = status
	}
	if input.Cost != nil {
		updates["cost"] = *input.Cost
	}
	if input.TimeEstimate != nil {
		updates["time_estimate"] = strings.TrimSpace(*input.TimeEstimate)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Basket{}).
			Where("id = ?", current.ID).
			Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("basket service: update basket: %w", err)
		}
	}

	updated, err := s.Get(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	delivered := input.Status != nil && *input.Status == models.BasketStatusDelivered &&
		current.Status != models.BasketStatusDelivered
	if delivered && updated.DriverID != nil && s.drivers != nil {
		if err := s.drivers.RecordDelivery(ctx, *updated.DriverID); err != nil {
			return nil, err
		}
	}

	s.broadcast(*updated)
	return updated, nil
}

// Delete removes a basket and its orders.
func (s *BasketService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	basket, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("basket_id = ?", basket.ID).Delete(&models.Order{}).Error; err != nil {
			return fmt.Errorf("basket service: delete orders: %w", err)
		}
		if err := tx.Delete(&models.Basket{}, "id = ?", basket.ID).Error; err != nil {
			return fmt.Errorf("basket service: delete basket: %w", err)
		}
		return nil
	})
}

func (s *BasketService) broadcast(dto BasketDTO) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastStream(realtime.StreamBaskets, realtime.Message{
		Event: realtime.EventBasketUpdated,
		Data:  dto,
	})
}

func validBasketStatus(status string) bool {
	switch status {
	case models.BasketStatusActive, models.BasketStatusDelivered, models.BasketStatusDelayed:
		return true
	}
	return false
}

func mapBasket(basket models.Basket) BasketDTO {
	dto := BasketDTO{
		ID:           basket.ID,
		Lat:          basket.Lat,
		Lon:          basket.Lon,
		Temperature:  basket.Temperature,
		DriverID:     basket.DriverID,
		Status:       basket.Status,
		Cost:         basket.Cost,
		TimeEstimate: basket.TimeEstimate,
		CreatedAt:    basket.CreatedAt,
		UpdatedAt:    basket.UpdatedAt,
	}
	if basket.Driver != nil {
		dto.DriverName = basket.Driver.Name
	}
	return dto
}
