package models

// Driver is a delivery driver who can be assigned baskets.
type Driver struct {
	BaseModel

	Name            string  `gorm:"not null" json:"name"`
	Phone           string  `json:"phone"`
	TotalDeliveries int     `gorm:"default:0" json:"total_deliveries"`
	Rating          float64 `gorm:"default:0" json:"rating"`

	Baskets []Basket `gorm:"foreignKey:DriverID;references:ID" json:"-"`
}
