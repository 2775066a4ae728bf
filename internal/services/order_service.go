package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const notifyTimeout = 30 * time.Second

// OrderService turns an active cart into an order.
type OrderService struct {
	db       *gorm.DB
	notifier OrderNotifier
	log      *zap.Logger
}

// NewOrderService constructs an OrderService. notifier may be nil.
func NewOrderService(db *gorm.DB, notifier OrderNotifier, log *zap.Logger) *OrderService {
	return &OrderService{db: db, notifier: notifier, log: log.Named("order")}
}

// PlacedOrder is the result of a successful checkout.
type PlacedOrder struct {
	OrderID uuid.UUID       `json:"order_id"`
	Total   decimal.Decimal `json:"total"`
}

type orderLine struct {
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
	Qty       int
}

// PlaceOrder checks out the user's active cart to addressID.
//
// The address must belong to the user and the active cart must hold at
// least one line. Unit prices are read from the catalog at this moment and
// stored on the order items. The order, its items, the emptied cart and the
// cart's move to "ordered" commit together or not at all; anything other
// than a failed precondition is reported as ErrTransactionFailed.
func (s *OrderService) PlaceOrder(ctx context.Context, userID, addressID uuid.UUID) (*PlacedOrder, error) {
	var (
		order models.Order
		lines []orderLine
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var address models.Address
		err := tx.Select("id").Where("id = ? AND user_id = ?", addressID, userID).Take(&address).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAddressNotFound
		}
		if err != nil {
			return err
		}

		var cart models.Cart
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status = ?", userID, models.CartStatusActive).
			Take(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}

		if err := tx.Table("cart_items").
			Select("cart_items.product_id, products.name, products.price, cart_items.qty").
			Joins("JOIN products ON products.id = cart_items.product_id").
			Where("cart_items.cart_id = ?", cart.ID).
			Order("cart_items.created_at ASC").
			Scan(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		total := decimal.Zero
		for _, line := range lines {
			total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Qty))))
		}
		total = total.Round(2)
		discount := decimal.Zero

		order = models.Order{
			UserID:         userID,
			AddressID:      addressID,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    total.Sub(discount),
			Status:         models.OrderStatusPending,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Qty:       line.Qty,
				Price:     line.Price,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		return tx.Model(&cart).Update("status", models.CartStatusOrdered).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAddressNotFound):
			utils.OrderPlacementFailuresTotal.WithLabelValues("address_not_found").Inc()
			return nil, err
		case errors.Is(err, ErrEmptyCart):
			utils.OrderPlacementFailuresTotal.WithLabelValues("empty_cart").Inc()
			return nil, err
		}
		utils.OrderPlacementFailuresTotal.WithLabelValues("transaction").Inc()
		s.log.Error("order placement rolled back",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, ErrTransactionFailed
	}

	utils.OrdersPlacedTotal.Inc()
	s.log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", order.FinalAmount.StringFixed(2)),
	)

	if s.notifier != nil {
		go s.notifyNewOrder(order, lines)
	}

	return &PlacedOrder{OrderID: order.ID, Total: order.FinalAmount}, nil
}

// notifyNewOrder runs after commit; its failure never affects the order.
func (s *OrderService) notifyNewOrder(order models.Order, lines []orderLine) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	notification := OrderNotification{
		OrderID: order.ID.String(),
		Total:   order.FinalAmount,
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("full_name", "email").Where("id = ?", order.UserID).Take(&user).Error; err == nil {
		notification.CustomerName = user.FullName
		notification.CustomerEmail = user.Email
	}

	var address models.Address
	if err := s.db.WithContext(ctx).Where("id = ?", order.AddressID).Take(&address).Error; err == nil {
		notification.Phone = address.Phone
		notification.City = address.City
	}

	for _, line := range lines {
		notification.Items = append(notification.Items, OrderItemNotification{
			Name:     line.Name,
			Quantity: line.Qty,
			Price:    line.Price,
		})
	}

	if err := s.notifier.NotifyNewOrder(ctx, notification); err != nil {
		s.log.Warn("order notification failed", zap.String("order_id", notification.OrderID), zap.Error(err))
	}
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, pg utils.Pagination) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at DESC").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// GetOrder returns one of the user's orders with items, products and address.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("Address").
		Where("id = ? AND user_id = ?", orderID, userID).
		Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// ListAllOrders returns every order for the admin panel, optionally
// filtered by status.
func (s *OrderService) ListAllOrders(ctx context.Context, status models.OrderStatus, pg utils.Pagination) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("Address").
		Order("created_at DESC").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus moves an order along its lifecycle. Amounts never change.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID).Take(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if !order.Status.CanTransitionTo(next) {
			return ErrInvalidStatus
		}

		if err := tx.Model(&order).Update("status", next).Error; err != nil {
			return err
		}
		order.Status = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrInvalidStatus) {
			return nil, err
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return &order, nil
}

// DashboardStats is the aggregate view shown on the admin dashboard.
type DashboardStats struct {
	TotalUsers     int64            `json:"total_users"`
	TotalOrders    int64            `json:"total_orders"`
	TotalProducts  int64            `json:"total_products"`
	TotalRevenue   decimal.Decimal  `json:"total_revenue"`
	OrdersByStatus map[string]int64 `json:"orders_by_status"`
}

// Stats computes the admin dashboard figures. Revenue excludes cancelled orders.
func (s *OrderService) Stats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{OrdersByStatus: map[string]int64{}}

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Product{}).Where("is_active = ?", true).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, sc := range counts {
		stats.OrdersByStatus[sc.Status] = sc.Count
	}

	var revenue decimal.NullDecimal
	if err := db.Model(&models.Order{}).
		Where("status <> ?", models.OrderStatusCancelled).
		Select("SUM(final_amount)").
		Row().Scan(&revenue); err != nil {
		return nil, err
	}
	stats.TotalRevenue = decimal.Zero
	if revenue.Valid {
		stats.TotalRevenue = revenue.Decimal.Round(2)
	}

	return stats, nil
}
