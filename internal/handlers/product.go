package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// ProductHandler manages the product catalog.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// activeProducts applies the public listing filters shared by the
// product and category endpoints.
func activeProducts(db *gorm.DB, category, search string) *gorm.DB {
	query := db.Model(&models.Product{}).Where("is_active = ?", true)

	if category = strings.TrimSpace(category); category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(category))
	}

	if search = strings.TrimSpace(search); search != "" {
		q := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", q, q)
	}

	return query
}

func listProducts(c *fiber.Ctx, query *gorm.DB) error {
	pg := utils.ParsePagination(c)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Order("created_at DESC").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

// ListProducts returns paginated active products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	return listProducts(c, activeProducts(h.db.WithContext(c.UserContext()), c.Query("category"), c.Query("search")))
}

// GetProduct loads an active product.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var product models.Product
	err = h.db.WithContext(c.UserContext()).Where("id = ? AND is_active = ?", id, true).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrProductNotFound
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productRequest struct {
	Name            string          `json:"name" validate:"required,max=255"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discount_percent" validate:"min=0,max=100"`
	StockQty        int             `json:"stock_qty" validate:"min=0"`
	ImageURL        string          `json:"image_url" validate:"omitempty,url"`
	Category        string          `json:"category" validate:"max=100"`
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", services.ErrValidation)
	}
	return nil
}

// CreateProduct adds a product to the catalog.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validatePrice(req.Price); err != nil {
		return err
	}

	product := models.Product{
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		Price:           req.Price.Round(2),
		DiscountPercent: req.DiscountPercent,
		StockQty:        req.StockQty,
		ImageURL:        req.ImageURL,
		Category:        strings.TrimSpace(req.Category),
		IsActive:        true,
	}

	if err := h.db.WithContext(c.UserContext()).Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

type updateProductRequest struct {
	Name            *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string          `json:"description"`
	Price           *decimal.Decimal `json:"price"`
	DiscountPercent *int             `json:"discount_percent" validate:"omitempty,min=0,max=100"`
	StockQty        *int             `json:"stock_qty" validate:"omitempty,min=0"`
	ImageURL        *string          `json:"image_url" validate:"omitempty,url"`
	Category        *string          `json:"category" validate:"omitempty,max=100"`
	IsActive        *bool            `json:"is_active"`
}

// UpdateProduct changes catalog fields. Orders keep the price they were
// placed with.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateProductRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return err
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.DiscountPercent != nil {
		updates["discount_percent"] = *req.DiscountPercent
	}
	if req.StockQty != nil {
		updates["stock_qty"] = *req.StockQty
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.Category != nil {
		updates["category"] = strings.TrimSpace(*req.Category)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	db := h.db.WithContext(c.UserContext())
	result := db.Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrProductNotFound
	}

	var product models.Product
	if err := db.Take(&product, "id = ?", id).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct hides a product. Existing carts and orders keep referencing it.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	result := h.db.WithContext(c.UserContext()).Model(&models.Product{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrProductNotFound
	}

	return c.JSON(fiber.Map{"success": true, "message": "product deleted"})
}
