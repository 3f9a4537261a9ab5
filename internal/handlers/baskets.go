package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetdeck-io/fleetdeck/internal/services"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

// BasketHandler exposes delivery basket tracking endpoints.
type BasketHandler struct {
	baskets *services.BasketService
}

func NewBasketHandler(baskets *services.BasketService) *BasketHandler {
	return &BasketHandler{baskets: baskets}
}

type createBasketRequest struct {
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	Temperature  *float64 `json:"temperature"`
	DriverID     *string  `json:"driver_id"`
	Cost         *float64 `json:"cost"`
	TimeEstimate string   `json:"time_estimate"`
}

// Create registers a basket.
// POST /api/baskets
func (h *BasketHandler) Create(c *gin.Context) {
	var req createBasketRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.baskets.Create(requestContext(c), services.CreateBasketInput{
		Lat:          req.Lat,
		Lon:          req.Lon,
		Temperature:  req.Temperature,
		DriverID:     req.DriverID,
		Cost:         req.Cost,
		TimeEstimate: req.TimeEstimate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// List returns baskets with optional ?status= filtering.
// GET /api/baskets
func (h *BasketHandler) List(c *gin.Context) {
	items, err := h.baskets.List(requestContext(c), c.Query("status"),
		parseIntQuery(c, "limit", 50), parseIntQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get returns one basket.
// GET /api/baskets/:id
func (h *BasketHandler) Get(c *gin.Context) {
	dto, err := h.baskets.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type updateBasketRequest struct {
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	Temperature  *float64 `json:"temperature"`
	DriverID     *string  `json:"driver_id"`
	Status       *string  `json:"status"`
	Cost         *float64 `json:"cost"`
	TimeEstimate *string  `json:"time_estimate"`
}

// Update edits a basket; changes are broadcast to the dashboard.
// PATCH /api/baskets/:id
func (h *BasketHandler) Update(c *gin.Context) {
	var req updateBasketRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.baskets.Update(requestContext(c), c.Param("id"), services.UpdateBasketInput{
		Lat:          req.Lat,
		Lon:          req.Lon,
		Temperature:  req.Temperature,
		DriverID:     req.DriverID,
		Status:       req.Status,
		Cost:         req.Cost,
		TimeEstimate: req.TimeEstimate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Delete removes a basket and its orders.
// DELETE /api/baskets/:id
func (h *BasketHandler) Delete(c *gin.Context) {
	if err := h.baskets.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
