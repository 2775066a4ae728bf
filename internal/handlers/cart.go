package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/services"
)

// CartHandler exposes the signed-in user's active cart.
type CartHandler struct {
	carts *services.CartService
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// GetCart returns the active cart priced at current prices.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	return h.respondWithSummary(c, userID, fiber.StatusOK)
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty"`
}

// AddItem adds a product to the cart. A missing or non-positive qty means one.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req addCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Qty <= 0 {
		req.Qty = 1
	}

	if err := h.carts.AddItem(c.UserContext(), userID, uuid.MustParse(req.ProductID), req.Qty); err != nil {
		return err
	}

	return h.respondWithSummary(c, userID, fiber.StatusCreated)
}

type updateCartItemRequest struct {
	Qty *int `json:"qty" validate:"required"`
}

// UpdateItem sets the quantity of a cart line; zero or less removes it.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	itemID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.carts.SetItemQuantity(c.UserContext(), userID, itemID, *req.Qty); err != nil {
		return err
	}

	return h.respondWithSummary(c, userID, fiber.StatusOK)
}

// RemoveItem deletes a cart line.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	itemID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.carts.RemoveItem(c.UserContext(), userID, itemID); err != nil {
		return err
	}

	return h.respondWithSummary(c, userID, fiber.StatusOK)
}

// ClearCart empties the active cart.
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if err := h.carts.Clear(c.UserContext(), userID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "cart cleared"})
}

func (h *CartHandler) respondWithSummary(c *fiber.Ctx, userID uuid.UUID, status int) error {
	summary, err := h.carts.Summary(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"success": true, "data": summary})
}
