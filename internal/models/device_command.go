package models

import (
	"time"

	"gorm.io/datatypes"
)

// CommandStatusAcknowledged marks a device command the node has confirmed.
// Cameras report completion instead; see CommandStatusCompleted.
const CommandStatusAcknowledged = "acknowledged"

// DeviceCommand is a queued instruction for a telemetry node. Unlike
// camera commands the type is free-form since node firmware varies.
type DeviceCommand struct {
	BaseModel

	DeviceID       string         `gorm:"type:uuid;index;not null" json:"device_id"`
	CommandType    string         `gorm:"type:varchar(64);not null" json:"command_type"`
	CommandPayload datatypes.JSON `json:"command_payload"`
	Status         string         `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	Response       datatypes.JSON `json:"response"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}
