package models

import "github.com/google/uuid"

type CartStatus string

const (
	CartStatusActive  CartStatus = "active"
	CartStatusOrdered CartStatus = "ordered"
)

// Cart holds a user's pending selection. A user has at most one active
// cart, enforced by a partial unique index created in database.Migrate.
type Cart struct {
	BaseModel
	UserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Status CartStatus `gorm:"size:16;not null;index" json:"status"`
	Items  []CartItem `json:"items,omitempty"`
}

type CartItem struct {
	BaseModel
	CartID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_cart_product" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Qty       int       `gorm:"not null" json:"qty"`
}
