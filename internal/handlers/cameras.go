package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fleetdeck-io/fleetdeck/internal/middleware"
	"github.com/fleetdeck-io/fleetdeck/internal/services"
	"github.com/fleetdeck-io/fleetdeck/pkg/errors"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

// CameraHandler exposes camera fleet management endpoints.
type CameraHandler struct {
	cameras  *services.CameraService
	commands *services.CameraCommandService
}

func NewCameraHandler(cameras *services.CameraService, commands *services.CameraCommandService) *CameraHandler {
	return &CameraHandler{cameras: cameras, commands: commands}
}

type registerCameraRequest struct {
	CameraID        string         `json:"camera_id" validate:"required,min=3,max=64"`
	CameraName      string         `json:"camera_name" validate:"required,min=1,max=128"`
	DeviceType      string         `json:"device_type"`
	FirmwareVersion string         `json:"firmware_version"`
	AssignedTo      string         `json:"assigned_to"`
	Metadata        map[string]any `json:"metadata"`
}

// Register creates a camera; the device API token is returned only here.
// POST /api/cameras
func (h *CameraHandler) Register(c *gin.Context) {
	var req registerCameraRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.cameras.Register(requestContext(c), services.RegisterCameraInput{
		CameraID:        req.CameraID,
		CameraName:      req.CameraName,
		DeviceType:      req.DeviceType,
		FirmwareVersion: req.FirmwareVersion,
		AssignedTo:      req.AssignedTo,
		Metadata:        req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

// List returns cameras with optional ?status= filtering.
// GET /api/cameras
func (h *CameraHandler) List(c *gin.Context) {
	items, err := h.cameras.List(requestContext(c), services.ListCamerasInput{
		Status: c.Query("status"),
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// Get returns one camera.
// GET /api/cameras/:id
func (h *CameraHandler) Get(c *gin.Context) {
	dto, err := h.cameras.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type updateCameraRequest struct {
	CameraName *string        `json:"camera_name"`
	AssignedTo *string        `json:"assigned_to"`
	Metadata   map[string]any `json:"metadata"`
}

// Update edits operator-facing camera fields.
// PATCH /api/cameras/:id
func (h *CameraHandler) Update(c *gin.Context) {
	var req updateCameraRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.cameras.Update(requestContext(c), c.Param("id"), services.UpdateCameraInput{
		CameraName: req.CameraName,
		AssignedTo: req.AssignedTo,
		Metadata:   req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Delete removes a camera.
// DELETE /api/cameras/:id
func (h *CameraHandler) Delete(c *gin.Context) {
	if err := h.cameras.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// RotateToken replaces the camera's device API token.
// POST /api/cameras/:id/rotate-token
func (h *CameraHandler) RotateToken(c *gin.Context) {
	dto, err := h.cameras.RotateToken(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type queueCommandRequest struct {
	CommandType string         `json:"command_type" validate:"required"`
	Payload     map[string]any `json:"payload"`
}

// QueueCommand enqueues a command for the camera to poll.
// POST /api/cameras/:id/commands
func (h *CameraHandler) QueueCommand(c *gin.Context) {
	var req queueCommandRequest
	if !bindAndValidate(c, &req) {
		return
	}

	camera, err := h.cameras.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	dto, err := h.commands.Queue(requestContext(c), services.QueueCommandInput{
		CameraID:    camera.ID,
		CommandType: req.CommandType,
		Payload:     req.Payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// ListCommands returns recent commands for a camera.
// GET /api/cameras/:id/commands
func (h *CameraHandler) ListCommands(c *gin.Context) {
	camera, err := h.cameras.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	items, err := h.commands.ListForCamera(requestContext(c), camera.ID, parseIntQuery(c, "limit", 25))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// ListPhotos returns stored photo records for a camera.
// GET /api/cameras/:id/photos
func (h *CameraHandler) ListPhotos(c *gin.Context) {
	items, err := h.cameras.ListPhotos(requestContext(c), c.Param("id"),
		parseIntQuery(c, "limit", 25), parseIntQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// --- device-facing endpoints, authenticated by camera API token ---

type cameraStatusRequest struct {
	Status          string   `json:"status"`
	BatteryLevel    *int     `json:"battery_level"`
	WifiSignal      *int     `json:"wifi_signal"`
	LocationLat     *float64 `json:"location_lat"`
	LocationLon     *float64 `json:"location_lon"`
	FirmwareVersion string   `json:"firmware_version"`
}

// ReportStatus records a heartbeat from the camera itself.
// POST /api/devices/camera/status
func (h *CameraHandler) ReportStatus(c *gin.Context) {
	cameraID := c.GetString(middleware.CtxCameraIDKey)
	if cameraID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req cameraStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.cameras.Heartbeat(requestContext(c), cameraID, services.CameraHeartbeatInput{
		Status:          req.Status,
		BatteryLevel:    req.BatteryLevel,
		WifiSignal:      req.WifiSignal,
		LocationLat:     req.LocationLat,
		LocationLon:     req.LocationLon,
		FirmwareVersion: req.FirmwareVersion,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// PollCommands hands pending commands to the camera and marks them sent.
// GET /api/devices/camera/commands
func (h *CameraHandler) PollCommands(c *gin.Context) {
	cameraID := c.GetString(middleware.CtxCameraIDKey)
	if cameraID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.commands.PollPending(requestContext(c), cameraID, parseIntQuery(c, "limit", 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

type completeCommandRequest struct {
	Success      bool           `json:"success"`
	Response     map[string]any `json:"response"`
	ErrorMessage string         `json:"error_message"`
}

// CompleteCommand records the outcome the camera reports for a command.
// POST /api/devices/camera/commands/:commandID/complete
func (h *CameraHandler) CompleteCommand(c *gin.Context) {
	cameraID := c.GetString(middleware.CtxCameraIDKey)
	if cameraID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req completeCommandRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.commands.Complete(requestContext(c), strings.TrimSpace(c.Param("commandID")), services.CompleteCommandInput{
		Success:      req.Success,
		Response:     req.Response,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type addPhotoRequest struct {
	PhotoURL     string         `json:"photo_url" validate:"required"`
	ThumbnailURL string         `json:"thumbnail_url"`
	CommandID    *string        `json:"command_id"`
	Metadata     map[string]any `json:"metadata"`
}

// AddPhoto records an externally stored photo capture.
// POST /api/devices/camera/photos
func (h *CameraHandler) AddPhoto(c *gin.Context) {
	cameraID := c.GetString(middleware.CtxCameraIDKey)
	if cameraID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req addPhotoRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.cameras.AddPhoto(requestContext(c), cameraID, services.AddPhotoInput{
		PhotoURL:     req.PhotoURL,
		ThumbnailURL: req.ThumbnailURL,
		CommandID:    req.CommandID,
		Metadata:     req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}
