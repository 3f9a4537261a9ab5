package models

import (
	"time"

	"gorm.io/datatypes"
)

// DeviceTelemetry is a single telemetry report from a device.
type DeviceTelemetry struct {
	BaseModel

	DeviceID  string    `gorm:"type:uuid;index;not null" json:"device_id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`

	BatteryLevel   *int     `json:"battery_level,omitempty"`
	SignalStrength *int     `json:"signal_strength,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	LocationLat    *float64 `json:"location_lat,omitempty"`
	LocationLon    *float64 `json:"location_lon,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	Altitude       *float64 `json:"altitude,omitempty"`
	Satellites     *int     `json:"satellites,omitempty"`
	Voltage        *float64 `json:"voltage,omitempty"`
	Current        *float64 `json:"current,omitempty"`
	RSSI           *int     `json:"rssi,omitempty"`
	SNR            *float64 `json:"snr,omitempty"`

	RawData datatypes.JSON `json:"raw_data"`
}
