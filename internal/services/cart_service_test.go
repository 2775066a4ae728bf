package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/database/dbtest"
	"github.com/example/storefront/internal/models"
)

func TestCartAddItemMergesQuantities(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	ctx := context.Background()
	user := seedUser(t, db, "bob@example.com", true)
	product := seedProduct(t, db, "Rose Oud", "10.00", true)

	require.NoError(t, svc.AddItem(ctx, user.ID, product.ID, 2))
	require.NoError(t, svc.AddItem(ctx, user.ID, product.ID, 3))

	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, 5, summary.Items[0].Qty)
	assert.Equal(t, "50.00", summary.Total.StringFixed(2))

	var items int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&items).Error)
	assert.EqualValues(t, 1, items)
}

func TestCartAddItemRejectsUnavailableProduct(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	ctx := context.Background()
	user := seedUser(t, db, "bob@example.com", true)
	inactive := seedProduct(t, db, "Retired", "12.00", false)

	err := svc.AddItem(ctx, user.ID, inactive.ID, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	err = svc.AddItem(ctx, user.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartAddItemRejectsNonPositiveQty(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	user := seedUser(t, db, "bob@example.com", true)
	product := seedProduct(t, db, "Rose Oud", "10.00", true)

	for _, qty := range []int{0, -3} {
		err := svc.AddItem(context.Background(), user.ID, product.ID, qty)
		assert.ErrorIs(t, err, ErrValidation, "qty %d", qty)
	}
}

func TestCartGetOrCreateConvergesOnOneCart(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	user := seedUser(t, db, "bob@example.com", true)

	const callers = 8
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := svc.GetOrCreateActiveCart(context.Background(), user.ID)
			errs[i] = err
			if err == nil {
				ids[i] = cart.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var active int64
	require.NoError(t, db.Model(&models.Cart{}).
		Where("user_id = ? AND status = ?", user.ID, models.CartStatusActive).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestCartActiveIndexRejectsSecondActiveCart(t *testing.T) {
	db := dbtest.Open(t)
	user := seedUser(t, db, "bob@example.com", true)

	require.NoError(t, db.Create(&models.Cart{UserID: user.ID, Status: models.CartStatusActive}).Error)
	err := db.Create(&models.Cart{UserID: user.ID, Status: models.CartStatusActive}).Error
	assert.Error(t, err)

	require.NoError(t, db.Create(&models.Cart{UserID: user.ID, Status: models.CartStatusOrdered}).Error)
}

func cartItemID(t *testing.T, svc *CartService, userID uuid.UUID) uuid.UUID {
	t.Helper()
	summary, err := svc.Summary(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Items)
	return summary.Items[0].ItemID
}

func TestCartSetItemQuantity(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	ctx := context.Background()
	user := seedUser(t, db, "bob@example.com", true)
	product := seedProduct(t, db, "Rose Oud", "10.00", true)

	require.NoError(t, svc.AddItem(ctx, user.ID, product.ID, 2))
	itemID := cartItemID(t, svc, user.ID)

	require.NoError(t, svc.SetItemQuantity(ctx, user.ID, itemID, 7))
	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Items[0].Qty)

	require.NoError(t, svc.SetItemQuantity(ctx, user.ID, itemID, 0))
	summary, err = svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
	assert.True(t, summary.Total.IsZero())
}

func TestCartSetNegativeQuantityRemovesLine(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	ctx := context.Background()
	user := seedUser(t, db, "bob@example.com", true)
	product := seedProduct(t, db, "Rose Oud", "10.00", true)

	require.NoError(t, svc.AddItem(ctx, user.ID, product.ID, 2))
	require.NoError(t, svc.SetItemQuantity(ctx, user.ID, cartItemID(t, svc, user.ID), -1))

	var items int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestCartItemsAreScopedToOwner(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	ctx := context.Background()
	owner := seedUser(t, db, "bob@example.com", true)
	other := seedUser(t, db, "eve@example.com", true)
	product := seedProduct(t, db, "Rose Oud", "10.00", true)

	require.NoError(t, svc.AddItem(ctx, owner.ID, product.ID, 2))
	itemID := cartItemID(t, svc, owner.ID)

	assert.ErrorIs(t, svc.SetItemQuantity(ctx, other.ID, itemID, 9), ErrCartItemNotFound)
	assert.ErrorIs(t, svc.RemoveItem(ctx, other.ID, itemID), ErrCartItemNotFound)

	summary, err := svc.Summary(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, 2, summary.Items[0].Qty)
}

func TestCartRemoveItem(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	ctx := context.Background()
	user := seedUser(t, db, "bob@example.com", true)
	first := seedProduct(t, db, "Rose Oud", "10.00", true)
	second := seedProduct(t, db, "Amber", "5.50", true)

	require.NoError(t, svc.AddItem(ctx, user.ID, first.ID, 1))
	require.NoError(t, svc.AddItem(ctx, user.ID, second.ID, 1))

	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	var firstItem uuid.UUID
	for _, line := range summary.Items {
		if line.ProductID == first.ID {
			firstItem = line.ItemID
		}
	}
	require.NotEqual(t, uuid.Nil, firstItem)

	require.NoError(t, svc.RemoveItem(ctx, user.ID, firstItem))

	summary, err = svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, second.ID, summary.Items[0].ProductID)

	assert.ErrorIs(t, svc.RemoveItem(ctx, user.ID, uuid.New()), ErrCartItemNotFound)
}

func TestCartClearKeepsCartActive(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	ctx := context.Background()
	user := seedUser(t, db, "bob@example.com", true)
	product := seedProduct(t, db, "Rose Oud", "10.00", true)

	require.NoError(t, svc.AddItem(ctx, user.ID, product.ID, 2))
	cart, err := svc.GetOrCreateActiveCart(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, user.ID))

	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)

	again, err := svc.GetOrCreateActiveCart(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)
}

func TestCartClearWithoutCart(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	user := seedUser(t, db, "bob@example.com", true)

	assert.NoError(t, svc.Clear(context.Background(), user.ID))
}

func TestCartSummaryTotals(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	ctx := context.Background()
	user := seedUser(t, db, "bob@example.com", true)
	first := seedProduct(t, db, "Rose Oud", "10.00", true)
	second := seedProduct(t, db, "Amber", "5.50", true)

	require.NoError(t, svc.AddItem(ctx, user.ID, first.ID, 2))
	require.NoError(t, svc.AddItem(ctx, user.ID, second.ID, 1))

	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, summary.Items, 2)
	assert.Equal(t, "25.50", summary.Total.StringFixed(2))

	byProduct := map[uuid.UUID]CartLine{}
	for _, line := range summary.Items {
		byProduct[line.ProductID] = line
	}
	assert.Equal(t, "20.00", byProduct[first.ID].Subtotal.StringFixed(2))
	assert.Equal(t, "Amber", byProduct[second.ID].Name)
	assert.Equal(t, "5.50", byProduct[second.ID].Price.StringFixed(2))
}

func TestCartSummaryWithoutCartIsEmpty(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewCartService(db)
	user := seedUser(t, db, "bob@example.com", true)

	summary, err := svc.Summary(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, summary.Items)
	assert.Empty(t, summary.Items)
	assert.True(t, summary.Total.IsZero())
}

// On PostgreSQL the cart reads must take a row lock so that PlaceOrder's
// FOR UPDATE on the same cart orders them against the checkout.
func TestCartReadsLockActiveCart(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=storefront dbname=storefront sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	userID, itemID := uuid.New(), uuid.New()

	cartSQL := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return activeCartQuery(tx, userID).Take(&models.Cart{})
	})
	assert.Contains(t, cartSQL, "status = 'active'")
	assert.True(t, strings.HasSuffix(cartSQL, "FOR SHARE"), cartSQL)

	itemSQL := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return ownedItemQuery(tx, userID, itemID).Take(&models.CartItem{})
	})
	assert.True(t, strings.HasSuffix(itemSQL, `FOR SHARE OF "carts"`), itemSQL)
}

func TestCartAddAfterCheckoutStartsNewCart(t *testing.T) {
	db := dbtest.Open(t)
	carts := NewCartService(db)
	ctx := context.Background()
	user := seedUser(t, db, "late@example.com", true)
	product := seedProduct(t, db, "Saffron", "4.00", true)

	require.NoError(t, carts.AddItem(ctx, user.ID, product.ID, 1))
	placed, err := carts.GetOrCreateActiveCart(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Cart{}).Where("id = ?", placed.ID).
		Update("status", models.CartStatusOrdered).Error)
	require.NoError(t, db.Where("cart_id = ?", placed.ID).Delete(&models.CartItem{}).Error)

	require.NoError(t, carts.AddItem(ctx, user.ID, product.ID, 2))

	current, err := carts.GetOrCreateActiveCart(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, placed.ID, current.ID)

	var stranded int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", placed.ID).Count(&stranded).Error)
	assert.Zero(t, stranded)

	summary, err := carts.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, 2, summary.Items[0].Qty)
}
