package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Role is a named permission group referenced by users.
type Role struct {
	BaseModel
	Name string `gorm:"size:32;uniqueIndex;not null" json:"name"`
}

// User represents a customer account. PasswordHash is nil for accounts
// created through Google or Facebook sign-in.
type User struct {
	BaseModel
	FullName     string     `gorm:"size:120" json:"full_name"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash *string    `json:"-"`
	GoogleID     *string    `gorm:"size:64;uniqueIndex" json:"-"`
	FacebookID   *string    `gorm:"size:64;uniqueIndex" json:"-"`
	AvatarURL    string     `json:"avatar_url"`
	IsVerified   bool       `gorm:"not null" json:"is_verified"`
	RoleID       uuid.UUID  `gorm:"type:uuid;index" json:"-"`
	Role         *Role      `json:"role,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// RoleName returns the loaded role name, defaulting to RoleUser.
func (u *User) RoleName() string {
	if u.Role == nil || u.Role.Name == "" {
		return RoleUser
	}
	return u.Role.Name
}
