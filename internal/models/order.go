package models

// Order is a customer order carried by a basket.
type Order struct {
	BaseModel

	BasketID string  `gorm:"type:uuid;index;not null" json:"basket_id"`
	Basket   *Basket `gorm:"foreignKey:BasketID" json:"basket,omitempty"`
	Customer string  `gorm:"not null" json:"customer"`
	Status   string  `gorm:"type:varchar(32);default:'pending';index" json:"status"`
}
