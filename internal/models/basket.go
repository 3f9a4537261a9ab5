package models

// Basket status values.
const (
	BasketStatusActive    = "active"
	BasketStatusDelivered = "delivered"
	BasketStatusDelayed   = "delayed"
)

// Basket is a tracked delivery container with a live position.
type Basket struct {
	BaseModel

	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Temperature *float64 `json:"temperature"`
	DriverID    *string  `gorm:"type:uuid;index" json:"driver_id"`
	Driver      *Driver  `gorm:"foreignKey:DriverID" json:"driver,omitempty"`

	Status       string   `gorm:"type:varchar(16);default:'active';index" json:"status"`
	Cost         *float64 `json:"cost"`
	TimeEstimate string   `json:"time_estimate,omitempty"`

	Orders []Order `gorm:"foreignKey:BasketID;references:ID" json:"-"`
}
