package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetdeck-io/fleetdeck/internal/services"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

// OrderHandler exposes order endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	BasketID string `json:"basket_id" validate:"required"`
	Customer string `json:"customer" validate:"required,min=1,max=128"`
}

// Create places an order on a basket.
// POST /api/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.orders.Create(requestContext(c), services.CreateOrderInput{
		BasketID: req.BasketID,
		Customer: req.Customer,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// List returns orders with ?basket_id= and ?status= filters.
// GET /api/orders
func (h *OrderHandler) List(c *gin.Context) {
	items, err := h.orders.List(requestContext(c),
		c.Query("basket_id"), c.Query("status"),
		parseIntQuery(c, "limit", 50), parseIntQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get returns one order.
// GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	dto, err := h.orders.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type updateOrderRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus transitions an order.
// PATCH /api/orders/:id
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.orders.UpdateStatus(requestContext(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Delete removes an order.
// DELETE /api/orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.orders.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
