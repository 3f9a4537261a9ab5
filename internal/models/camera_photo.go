package models

import (
	"time"

	"gorm.io/datatypes"
)

// CameraPhoto records a photo captured by a camera, stored externally.
type CameraPhoto struct {
	BaseModel

	CameraID     string         `gorm:"type:uuid;index;not null" json:"camera_id"`
	PhotoURL     string         `gorm:"not null" json:"photo_url"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	TakenAt      time.Time      `gorm:"index" json:"taken_at"`
	CommandID    *string        `gorm:"type:uuid" json:"command_id,omitempty"`
	Metadata     datatypes.JSON `json:"metadata"`
}
