package models

import (
	"time"

	"gorm.io/datatypes"
)

// Camera status values reported by ESP32 devices.
const (
	CameraStatusOnline  = "online"
	CameraStatusOffline = "offline"
	CameraStatusBusy    = "busy"
	CameraStatusError   = "error"
)

// Camera represents an ESP32 camera mounted on a delivery basket.
type Camera struct {
	BaseModel

	CameraID        string `gorm:"uniqueIndex;not null" json:"camera_id"`
	CameraName      string `gorm:"not null" json:"camera_name"`
	DeviceType      string `gorm:"default:'esp32-cam'" json:"device_type"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	AssignedTo      string `json:"assigned_to,omitempty"`

	Status       string  `gorm:"type:varchar(32);default:'offline';index" json:"status"`
	BatteryLevel *int    `json:"battery_level,omitempty"`
	WifiSignal   *int    `json:"wifi_signal,omitempty"`
	LocationLat  *float64 `json:"location_lat,omitempty"`
	LocationLon  *float64 `json:"location_lon,omitempty"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`

	// APIToken authenticates the device itself on frame upload, status
	// reporting, command polling, and the realtime relay.
	APIToken string `gorm:"uniqueIndex;not null" json:"-"`

	Metadata datatypes.JSON `json:"metadata"`

	Photos   []CameraPhoto   `gorm:"foreignKey:CameraID;references:ID" json:"-"`
	Commands []CameraCommand `gorm:"foreignKey:CameraID;references:ID" json:"-"`
}
