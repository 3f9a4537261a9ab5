package models

import (
	"time"

	"gorm.io/datatypes"
)

// Alert types raised for devices.
const (
	AlertTypeLowBattery  = "low_battery"
	AlertTypeOffline     = "offline"
	AlertTypeTemperature = "temperature"
	AlertTypeSignalLoss  = "signal_loss"
	AlertTypeGeofence    = "geofence"
	AlertTypeCustom      = "custom"
)

// Alert severities.
const (
	AlertSeverityInfo     = "info"
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"
)

// DeviceAlert captures an operational condition on a device that needs attention.
type DeviceAlert struct {
	BaseModel

	DeviceID   string         `gorm:"type:uuid;index;not null" json:"device_id"`
	AlertType  string         `gorm:"type:varchar(32);not null" json:"alert_type"`
	Severity   string         `gorm:"type:varchar(16);default:'info';index" json:"severity"`
	Message    string         `gorm:"type:text" json:"message"`
	IsResolved bool           `gorm:"default:false;index" json:"is_resolved"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	Metadata   datatypes.JSON `json:"metadata"`
}
