package models

import (
	"time"

	"gorm.io/datatypes"
)

// Command lifecycle states.
const (
	CommandStatusPending   = "pending"
	CommandStatusSent      = "sent"
	CommandStatusCompleted = "completed"
	CommandStatusFailed    = "failed"
	CommandStatusTimeout   = "timeout"
)

// CommandTypes enumerates the commands a camera understands.
var CommandTypes = []string{
	"take_photo",
	"start_video",
	"stop_video",
	"get_status",
	"update_settings",
	"reboot",
	"led_on",
	"led_off",
	"toggle_led",
	"play_sound",
	"save_photo",
}

// CameraCommand is a queued instruction for a camera, polled by the device.
type CameraCommand struct {
	BaseModel

	CameraID       string         `gorm:"type:uuid;index;not null" json:"camera_id"`
	CommandType    string         `gorm:"type:varchar(32);not null" json:"command_type"`
	CommandPayload datatypes.JSON `json:"command_payload"`
	Status         string         `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Response       datatypes.JSON `json:"response"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

// ValidCommandType reports whether the supplied command type is known.
func ValidCommandType(commandType string) bool {
	for _, known := range CommandTypes {
		if known == commandType {
			return true
		}
	}
	return false
}
