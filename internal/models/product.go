package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Deletion only clears IsActive.
type Product struct {
	BaseModel
	Name            string          `gorm:"size:255;not null" json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	DiscountPercent int             `json:"discount_percent"`
	StockQty        int             `json:"stock_qty"`
	ImageURL        string          `json:"image_url"`
	Category        string          `gorm:"size:100;index" json:"category"`
	IsActive        bool            `gorm:"not null;index" json:"is_active"`
}

type Category struct {
	BaseModel
	Name     string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	ImageURL string `json:"image_url"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}

type Favourite struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_favourites_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_favourites_user_product" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
}
