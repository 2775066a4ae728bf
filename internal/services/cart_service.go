package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
)

// CartService manages each user's single active cart.
type CartService struct {
	db *gorm.DB
}

// NewCartService constructs a CartService.
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// CartLine is one priced row of a cart summary.
type CartLine struct {
	ItemID    uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartSummary is the active cart priced at current product prices.
type CartSummary struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// GetOrCreateActiveCart returns the user's active cart, creating it when
// missing. Concurrent callers converge on the same row.
func (s *CartService) GetOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := getOrCreateActiveCart(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("get active cart: %w", err)
	}
	return cart, nil
}

// activeCartQuery selects the user's active cart under a share lock. A
// concurrent PlaceOrder holds the row FOR UPDATE, so cart writers either
// finish before it snapshots the lines or wait and then re-check the status,
// finding no active cart once the order has committed.
func activeCartQuery(tx *gorm.DB, userID uuid.UUID) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "SHARE"}).
		Where("user_id = ? AND status = ?", userID, models.CartStatusActive)
}

func findActiveCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := activeCartQuery(tx, userID).Take(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func getOrCreateActiveCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	cart, err := findActiveCart(tx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// A losing concurrent insert hits the partial unique index and is
	// skipped; the re-read below then returns the winner's cart.
	created := models.Cart{UserID: userID, Status: models.CartStatusActive}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&created).Error; err != nil {
		return nil, err
	}

	return findActiveCart(tx, userID)
}

// AddItem puts qty units of an active product into the user's cart,
// adding to the existing line when the product is already there.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return validationError("qty must be positive")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		err := tx.Select("id").Where("id = ? AND is_active = ?", productID, true).Take(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		cart, err := getOrCreateActiveCart(tx, userID)
		if err != nil {
			return err
		}

		item := models.CartItem{CartID: cart.ID, ProductID: productID, Qty: qty}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"qty":        gorm.Expr("cart_items.qty + ?", qty),
				"updated_at": time.Now(),
			}),
		}).Create(&item).Error
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func ownedItemQuery(tx *gorm.DB, userID, itemID uuid.UUID) *gorm.DB {
	return tx.Clauses(clause.Locking{
		Strength: "SHARE",
		Table:    clause.Table{Name: "carts"},
	}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ? AND carts.status = ?", itemID, userID, models.CartStatusActive)
}

// ownedItem loads a line of the user's active cart, share locking the cart.
func ownedItem(tx *gorm.DB, userID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := ownedItemQuery(tx, userID, itemID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetItemQuantity replaces the quantity of a cart line. A quantity of
// zero or less removes the line.
func (s *CartService) SetItemQuantity(ctx context.Context, userID, itemID uuid.UUID, qty int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := ownedItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		if qty <= 0 {
			return tx.Delete(item).Error
		}
		return tx.Model(item).Update("qty", qty).Error
	})
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return err
		}
		return fmt.Errorf("set cart item quantity: %w", err)
	}
	return nil
}

// RemoveItem deletes a line from the user's active cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := ownedItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return err
		}
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

// Clear empties the active cart. The cart itself stays active.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := findActiveCart(tx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Summary prices the active cart at current product prices. A user
// without an active cart gets an empty summary.
func (s *CartService) Summary(ctx context.Context, userID uuid.UUID) (*CartSummary, error) {
	var lines []CartLine
	err := s.db.WithContext(ctx).Table("cart_items").
		Select("cart_items.id AS item_id, cart_items.product_id, products.name, products.image_url, products.price, cart_items.qty").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("carts.user_id = ? AND carts.status = ?", userID, models.CartStatusActive).
		Order("cart_items.created_at ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("cart summary: %w", err)
	}

	summary := &CartSummary{Items: make([]CartLine, 0, len(lines)), Total: decimal.Zero}
	for _, line := range lines {
		line.Subtotal = line.Price.Mul(decimal.NewFromInt(int64(line.Qty))).Round(2)
		summary.Total = summary.Total.Add(line.Subtotal)
		summary.Items = append(summary.Items, line)
	}
	summary.Total = summary.Total.Round(2)
	return summary, nil
}
