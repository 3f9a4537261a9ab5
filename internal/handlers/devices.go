package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetdeck-io/fleetdeck/internal/services"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

// DeviceHandler exposes telemetry node management and ingestion endpoints.
type DeviceHandler struct {
	devices *services.DeviceService
}

func NewDeviceHandler(devices *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type registerDeviceRequest struct {
	DeviceID        string         `json:"device_id" validate:"required,min=3,max=64"`
	DeviceName      string         `json:"device_name" validate:"required,min=1,max=128"`
	DeviceType      string         `json:"device_type"`
	FirmwareVersion string         `json:"firmware_version"`
	HardwareModel   string         `json:"hardware_model"`
	MACAddress      string         `json:"mac_address"`
	BasketID        *string        `json:"basket_id"`
	Metadata        map[string]any `json:"metadata"`
}

// Register creates a device in provisioning state.
// POST /api/devices
func (h *DeviceHandler) Register(c *gin.Context) {
	var req registerDeviceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.devices.Register(requestContext(c), services.RegisterDeviceInput{
		DeviceID:        req.DeviceID,
		DeviceName:      req.DeviceName,
		DeviceType:      req.DeviceType,
		FirmwareVersion: req.FirmwareVersion,
		HardwareModel:   req.HardwareModel,
		MACAddress:      req.MACAddress,
		BasketID:        req.BasketID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// List returns devices filtered by ?status= and ?basket_id=.
// GET /api/devices
func (h *DeviceHandler) List(c *gin.Context) {
	items, err := h.devices.List(requestContext(c),
		c.Query("status"), c.Query("basket_id"),
		parseIntQuery(c, "limit", 50), parseIntQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get returns one device.
// GET /api/devices/:id
func (h *DeviceHandler) Get(c *gin.Context) {
	dto, err := h.devices.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type updateDeviceRequest struct {
	DeviceName *string        `json:"device_name"`
	Status     *string        `json:"status"`
	BasketID   *string        `json:"basket_id"`
	Metadata   map[string]any `json:"metadata"`
}

// Update edits a device.
// PATCH /api/devices/:id
func (h *DeviceHandler) Update(c *gin.Context) {
	var req updateDeviceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.devices.Update(requestContext(c), c.Param("id"), services.UpdateDeviceInput{
		DeviceName: req.DeviceName,
		Status:     req.Status,
		BasketID:   req.BasketID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Delete removes a device and its history.
// DELETE /api/devices/:id
func (h *DeviceHandler) Delete(c *gin.Context) {
	if err := h.devices.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type telemetryRequest struct {
	Timestamp      *time.Time     `json:"timestamp"`
	BatteryLevel   *int           `json:"battery_level"`
	SignalStrength *int           `json:"signal_strength"`
	Temperature    *float64       `json:"temperature"`
	LocationLat    *float64       `json:"location_lat"`
	LocationLon    *float64       `json:"location_lon"`
	Speed          *float64       `json:"speed"`
	Altitude       *float64       `json:"altitude"`
	Satellites     *int           `json:"satellites"`
	Voltage        *float64       `json:"voltage"`
	Current        *float64       `json:"current"`
	RSSI           *int           `json:"rssi"`
	SNR            *float64       `json:"snr"`
	RawData        map[string]any `json:"raw_data"`
}

// ReportTelemetry ingests a telemetry report for a device.
// POST /api/devices/:id/telemetry
func (h *DeviceHandler) ReportTelemetry(c *gin.Context) {
	var req telemetryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.devices.ReportTelemetry(requestContext(c), c.Param("id"), services.TelemetryInput{
		Timestamp:      req.Timestamp,
		BatteryLevel:   req.BatteryLevel,
		SignalStrength: req.SignalStrength,
		Temperature:    req.Temperature,
		LocationLat:    req.LocationLat,
		LocationLon:    req.LocationLon,
		Speed:          req.Speed,
		Altitude:       req.Altitude,
		Satellites:     req.Satellites,
		Voltage:        req.Voltage,
		Current:        req.Current,
		RSSI:           req.RSSI,
		SNR:            req.SNR,
		RawData:        req.RawData,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// ListTelemetry returns stored reports with ?limit= and ?since= filters.
// GET /api/devices/:id/telemetry
func (h *DeviceHandler) ListTelemetry(c *gin.Context) {
	items, err := h.devices.ListTelemetry(requestContext(c), c.Param("id"), services.ListTelemetryInput{
		Since: parseTimeQuery(c, "since"),
		Limit: parseIntQuery(c, "limit", 100),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

type sendDeviceCommandRequest struct {
	CommandType string         `json:"command_type" validate:"required,min=1,max=64"`
	Payload     map[string]any `json:"command_payload"`
}

// SendCommand queues a command for a device.
// POST /api/devices/:id/commands
func (h *DeviceHandler) SendCommand(c *gin.Context) {
	var req sendDeviceCommandRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.devices.SendCommand(requestContext(c), c.Param("id"), services.SendDeviceCommandInput{
		CommandType: req.CommandType,
		Payload:     req.Payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// ListCommands returns queued commands with ?status= and ?limit= filters.
// GET /api/devices/:id/commands
func (h *DeviceHandler) ListCommands(c *gin.Context) {
	items, err := h.devices.ListCommands(requestContext(c), c.Param("id"), services.ListDeviceCommandsInput{
		Status: c.Query("status"),
		Limit:  parseIntQuery(c, "limit", 50),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

type ackDeviceCommandRequest struct {
	Status       string         `json:"status" validate:"required"`
	Response     map[string]any `json:"response"`
	ErrorMessage string         `json:"error_message"`
}

// AckCommand records delivery progress for a queued command.
// PATCH /api/devices/:id/commands/:commandID
func (h *DeviceHandler) AckCommand(c *gin.Context) {
	var req ackDeviceCommandRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.devices.AckCommand(requestContext(c), c.Param("commandID"), services.AckDeviceCommandInput{
		Status:       req.Status,
		Response:     req.Response,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// ListAlerts returns alerts across devices, filtered by query parameters.
// GET /api/alerts
func (h *DeviceHandler) ListAlerts(c *gin.Context) {
	items, err := h.devices.ListAlerts(requestContext(c), services.ListAlertsInput{
		DeviceID:       c.Query("device_id"),
		Severity:       c.Query("severity"),
		UnresolvedOnly: c.Query("unresolved") == "true",
		Limit:          parseIntQuery(c, "limit", 50),
		Offset:         parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

type raiseAlertRequest struct {
	DeviceID  string         `json:"device_id" validate:"required"`
	AlertType string         `json:"alert_type" validate:"required,min=1,max=64"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
}

// RaiseAlert opens an alert manually. Duplicate open alerts of the same
// type for one device collapse into the existing one.
// POST /api/alerts
func (h *DeviceHandler) RaiseAlert(c *gin.Context) {
	var req raiseAlertRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.devices.RaiseAlert(requestContext(c), req.DeviceID, services.RaiseAlertInput{
		AlertType: req.AlertType,
		Severity:  req.Severity,
		Message:   req.Message,
		Metadata:  req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// ResolveAlert marks an alert handled.
// POST /api/alerts/:id/resolve
func (h *DeviceHandler) ResolveAlert(c *gin.Context) {
	dto, err := h.devices.ResolveAlert(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}
