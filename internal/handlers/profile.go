package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// ProfileHandler manages the signed-in user's profile and addresses.
type ProfileHandler struct {
	db   *gorm.DB
	auth *services.AuthService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, auth *services.AuthService) *ProfileHandler {
	return &ProfileHandler{db: db, auth: auth}
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	user, err := h.auth.Profile(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

type updateProfileRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// UpdateProfile updates user profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.auth.UpdateProfile(c.UserContext(), userID, req.FullName, req.AvatarURL)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

// Address endpoints

// ListAddresses returns user addresses, default first.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var addresses []models.Address
	if err := h.db.WithContext(c.UserContext()).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC").
		Find(&addresses).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

type createAddressRequest struct {
	FullName   string `json:"full_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=30"`
	Province   string `json:"province" validate:"max=80"`
	District   string `json:"district" validate:"max=80"`
	Zone       string `json:"zone" validate:"max=120"`
	City       string `json:"city" validate:"max=80"`
	Area       string `json:"area" validate:"max=120"`
	Street     string `json:"street" validate:"max=255"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	IsDefault  bool   `json:"is_default"`
}

// CreateAddress creates an address for the user. A new default address
// takes the flag from the previous one.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req createAddressRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	address := models.Address{
		UserID:     userID,
		FullName:   req.FullName,
		Phone:      req.Phone,
		Province:   req.Province,
		District:   req.District,
		Zone:       req.Zone,
		City:       req.City,
		Area:       req.Area,
		Street:     req.Street,
		PostalCode: req.PostalCode,
		IsDefault:  req.IsDefault,
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if address.IsDefault {
			if err := clearDefaultAddress(tx, userID); err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": address})
}

type updateAddressRequest struct {
	FullName   *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	Phone      *string `json:"phone" validate:"omitempty,min=1,max=30"`
	Province   *string `json:"province" validate:"omitempty,max=80"`
	District   *string `json:"district" validate:"omitempty,max=80"`
	Zone       *string `json:"zone" validate:"omitempty,max=120"`
	City       *string `json:"city" validate:"omitempty,max=80"`
	Area       *string `json:"area" validate:"omitempty,max=120"`
	Street     *string `json:"street" validate:"omitempty,max=255"`
	PostalCode *string `json:"postal_code" validate:"omitempty,max=20"`
	IsDefault  *bool   `json:"is_default"`
}

// UpdateAddress updates a user address.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	addrID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateAddressRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	for column, value := range map[string]*string{
		"full_name":   req.FullName,
		"phone":       req.Phone,
		"province":    req.Province,
		"district":    req.District,
		"zone":        req.Zone,
		"city":        req.City,
		"area":        req.Area,
		"street":      req.Street,
		"postal_code": req.PostalCode,
	} {
		if value != nil {
			updates[column] = *value
		}
	}
	if req.IsDefault != nil {
		updates["is_default"] = *req.IsDefault
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	var address models.Address
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := loadOwnedAddress(tx, userID, addrID, &address); err != nil {
			return err
		}
		if req.IsDefault != nil && *req.IsDefault {
			if err := clearDefaultAddress(tx, userID); err != nil {
				return err
			}
		}
		if err := tx.Model(&address).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Take(&address, "id = ?", addrID).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": address})
}

// SetDefaultAddress makes one address the user's default.
func (h *ProfileHandler) SetDefaultAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	addrID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var address models.Address
		if err := loadOwnedAddress(tx, userID, addrID, &address); err != nil {
			return err
		}
		if err := clearDefaultAddress(tx, userID); err != nil {
			return err
		}
		return tx.Model(&address).Update("is_default", true).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "default address updated"})
}

// DeleteAddress removes a user address that no order points to.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	addrID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var address models.Address
		if err := loadOwnedAddress(tx, userID, addrID, &address); err != nil {
			return err
		}

		var used int64
		if err := tx.Model(&models.Order{}).Where("address_id = ?", addrID).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return fmt.Errorf("address is used by an order: %w", services.ErrConflict)
		}

		return tx.Delete(&address).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "address deleted"})
}

func loadOwnedAddress(tx *gorm.DB, userID, addrID uuid.UUID, dst *models.Address) error {
	err := tx.Where("id = ? AND user_id = ?", addrID, userID).Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrAddressNotFound
	}
	return err
}

func clearDefaultAddress(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Model(&models.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}
