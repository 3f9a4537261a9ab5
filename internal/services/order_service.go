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

// Order lifecycle states.
var orderStatuses = []string{"pending", "in_transit", "delivered", "cancelled"}

// OrderDTO is the API-facing order payload.
type OrderDTO struct {
	ID        string    `json:"id"`
	BasketID  string    `json:"basket_id"`
	Customer  string    `json:"customer"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateOrderInput describes a new order.
type CreateOrderInput struct {
	BasketID string
	Customer string
}

// OrderService manages customer orders carried by baskets.
type OrderService struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, hub *realtime.Hub) (*OrderService, error) {
	if db == nil {
		return nil, errors.New("order service: db is required")
	}
	return &OrderService{db: db, hub: hub}, nil
}

// Create places an order on a basket.
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	ctx = ensureContext(ctx)
	basketID := strings.TrimSpace(input.BasketID)
	if basketID == "" {
		return nil, errors.New("order service: basket id is required")
	}
	customer := strings.TrimSpace(input.Customer)
	if customer == "" {
		return nil, errors.New("order service: customer is required")
	}

	var basket models.Basket
	if err := s.db.WithContext(ctx).First(&basket, "id = ?", basketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("order service: load basket: %w", err)
	}

	order := models.Order{
		BasketID: basket.ID,
		Customer: customer,
		Status:   "pending",
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("order service: create order: %w", err)
	}

	dto := mapOrder(order)
	s.broadcast(dto)
	return &dto, nil
}

// List returns orders, optionally filtered by basket or status.
func (s *OrderService) List(ctx context.Context, basketID, status string, limit, offset int) ([]OrderDTO, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Order{}).Order("created_at DESC")
	if basketID = strings.TrimSpace(basketID); basketID != "" {
		query = query.Where("basket_id = ?", basketID)
	}
	if status = strings.TrimSpace(status); status != "" {
		query = query.Where("status = ?", status)
	}

	var rows []models.Order
	if err := query.
		Limit(clampLimit(limit, 50, 200)).
		Offset(max(0, offset)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("order service: list orders: %w", err)
	}

	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapOrder(row))
	}
	return out, nil
}

// Get returns an order by ID.
func (s *OrderService) Get(ctx context.Context, id string) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapOrder(*order)
	return &dto, nil
}

// UpdateStatus transitions an order and broadcasts the change.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*OrderDTO, error) {
	ctx = ensureContext(ctx)
	status = strings.TrimSpace(status)
	if !validOrderStatus(status) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown order status %q", status))
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(order).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("order service: update status: %w", err)
	}

	order.Status = status
	dto := mapOrder(*order)
	s.broadcast(dto)
	return &dto, nil
}

// Delete removes an order.
func (s *OrderService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	order, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(order).Error; err != nil {
		return fmt.Errorf("order service: delete order: %w", err)
	}
	return nil
}

func (s *OrderService) load(ctx context.Context, id string) (*models.Order, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("order service: id is required")
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("order service: load order: %w", err)
	}
	return &order, nil
}

func (s *OrderService) broadcast(dto OrderDTO) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastStream(realtime.StreamOrders, realtime.Message{
		Event: realtime.EventOrderStatus,
		Data:  dto,
	})
}

func validOrderStatus(status string) bool {
	for _, known := range orderStatuses {
		if known == status {
			return true
		}
	}
	return false
}

func mapOrder(order models.Order) OrderDTO {
	return OrderDTO{
		ID:        order.ID,
		BasketID:  order.BasketID,
		Customer:  order.Customer,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}
