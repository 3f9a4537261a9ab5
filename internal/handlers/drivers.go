package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetdeck-io/fleetdeck/internal/services"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

// DriverHandler exposes driver management and the delivery leaderboard.
type DriverHandler struct {
	drivers *services.DriverService
}

func NewDriverHandler(drivers *services.DriverService) *DriverHandler {
	return &DriverHandler{drivers: drivers}
}

type driverRequest struct {
	Name   string   `json:"name" validate:"required,min=1,max=128"`
	Phone  string   `json:"phone"`
	Rating *float64 `json:"rating"`
}

// Create registers a driver.
// POST /api/drivers
func (h *DriverHandler) Create(c *gin.Context) {
	var req driverRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.drivers.Create(requestContext(c), services.DriverInput{
		Name:   req.Name,
		Phone:  req.Phone,
		Rating: req.Rating,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// List returns all drivers.
// GET /api/drivers
func (h *DriverHandler) List(c *gin.Context) {
	items, err := h.drivers.List(requestContext(c),
		parseIntQuery(c, "limit", 50), parseIntQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get returns one driver.
// GET /api/drivers/:id
func (h *DriverHandler) Get(c *gin.Context) {
	dto, err := h.drivers.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type updateDriverRequest struct {
	Name   string   `json:"name"`
	Phone  string   `json:"phone"`
	Rating *float64 `json:"rating"`
}

// Update edits a driver.
// PATCH /api/drivers/:id
func (h *DriverHandler) Update(c *gin.Context) {
	var req updateDriverRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.drivers.Update(requestContext(c), c.Param("id"), services.DriverInput{
		Name:   req.Name,
		Phone:  req.Phone,
		Rating: req.Rating,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Delete removes a driver.
// DELETE /api/drivers/:id
func (h *DriverHandler) Delete(c *gin.Context) {
	if err := h.drivers.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Rewards returns the delivery leaderboard.
// GET /api/drivers/rewards
func (h *DriverHandler) Rewards(c *gin.Context) {
	items, err := h.drivers.Leaderboard(requestContext(c), parseIntQuery(c, "limit", 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}
