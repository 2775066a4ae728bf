package models

import "github.com/google/uuid"

// Address is a shipping address. At most one per user has IsDefault set;
// the handlers clear the flag on the others before setting it.
type Address struct {
	BaseModel
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	FullName   string    `gorm:"size:120;not null" json:"full_name"`
	Phone      string    `gorm:"size:30;not null" json:"phone"`
	Province   string    `gorm:"size:80" json:"province"`
	District   string    `gorm:"size:80" json:"district"`
	Zone       string    `gorm:"size:120" json:"zone"`
	City       string    `gorm:"size:80" json:"city"`
	Area       string    `gorm:"size:120" json:"area"`
	Street     string    `gorm:"size:255" json:"street"`
	PostalCode string    `gorm:"size:20" json:"postal_code"`
	IsDefault  bool      `gorm:"not null" json:"is_default"`
}
