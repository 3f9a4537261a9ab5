package models

import (
	"time"

	"gorm.io/datatypes"
)

// Device status values.
const (
	DeviceStatusActive         = "active"
	DeviceStatusInactive       = "inactive"
	DeviceStatusProvisioning   = "provisioning"
	DeviceStatusMaintenance    = "maintenance"
	DeviceStatusDecommissioned = "decommissioned"
)

// Device represents a Meshtastic telemetry node attached to a basket.
type Device struct {
	BaseModel

	DeviceID        string  `gorm:"uniqueIndex;not null" json:"device_id"`
	DeviceName      string  `gorm:"not null" json:"device_name"`
	DeviceType      string  `gorm:"default:'meshtastic'" json:"device_type"`
	FirmwareVersion string  `json:"firmware_version,omitempty"`
	HardwareModel   string  `json:"hardware_model,omitempty"`
	MACAddress      string  `json:"mac_address,omitempty"`
	BasketID        *string `gorm:"type:uuid;index" json:"basket_id,omitempty"`

	Status         string     `gorm:"type:varchar(32);default:'provisioning';index" json:"status"`
	BatteryLevel   *int       `json:"battery_level,omitempty"`
	SignalStrength *int       `json:"signal_strength,omitempty"`
	LastSeen       *time.Time `gorm:"index" json:"last_seen,omitempty"`
	LocationLat    *float64   `json:"location_lat,omitempty"`
	LocationLon    *float64   `json:"location_lon,omitempty"`

	Metadata datatypes.JSON `json:"metadata"`

	Telemetry []DeviceTelemetry `gorm:"foreignKey:DeviceID;references:ID" json:"-"`
	Alerts    []DeviceAlert     `gorm:"foreignKey:DeviceID;references:ID" json:"-"`
}
