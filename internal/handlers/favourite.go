package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// FavouriteHandler manages the user's saved products.
type FavouriteHandler struct {
	db *gorm.DB
}

// NewFavouriteHandler constructs FavouriteHandler.
func NewFavouriteHandler(db *gorm.DB) *FavouriteHandler {
	return &FavouriteHandler{db: db}
}

// ListFavourites returns saved products that are still on sale.
func (h *FavouriteHandler) ListFavourites(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var favourites []models.Favourite
	if err := h.db.WithContext(c.UserContext()).
		Joins("Product").
		Where("favourites.user_id = ? AND \"Product\".is_active = ?", userID, true).
		Order("favourites.created_at DESC").
		Find(&favourites).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": favourites})
}

type favouriteRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// AddFavourite saves a product. Saving it twice is a no-op.
func (h *FavouriteHandler) AddFavourite(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req favouriteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	productID := uuid.MustParse(req.ProductID)

	db := h.db.WithContext(c.UserContext())

	var product models.Product
	err = db.Select("id").Where("id = ? AND is_active = ?", productID, true).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrProductNotFound
	}
	if err != nil {
		return err
	}

	favourite := models.Favourite{UserID: userID, ProductID: productID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&favourite).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": "added to favourites"})
}

// RemoveFavourite unsaves a product.
func (h *FavouriteHandler) RemoveFavourite(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	productID, err := parseIDParam(c, "product_id")
	if err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.Favourite{}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "removed from favourites"})
}
