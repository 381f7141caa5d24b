package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	"github.com/freshmartsg/freshmart-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT,
  customer_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  contact_phone TEXT NOT NULL DEFAULT '',
  delivery_method TEXT NOT NULL,
  delivery_address TEXT NOT NULL DEFAULT '',
  payment_method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  paid INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  payment_reference TEXT NOT NULL DEFAULT '',
  subtotal NUMERIC NOT NULL DEFAULT 0,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL,
  product_name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  line_total NUMERIC NOT NULL
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func mustCreateOrder(t *testing.T, repo *Repository, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:    fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8]),
		DeliveryMethod: enums.DeliveryMethodStandard,
		PaymentMethod:  enums.PaymentMethodCash,
		Status:         enums.OrderStatusPending,
		Subtotal:       decimal.RequireFromString("7.50"),
		DeliveryFee:    decimal.RequireFromString("1.00"),
		Total:          decimal.RequireFromString("8.50"),
		Items: []models.OrderItem{{
			ProductID:   7,
			ProductName: "apples",
			UnitPrice:   decimal.RequireFromString("2.50"),
			Quantity:    3,
			LineTotal:   decimal.RequireFromString("7.50"),
		}},
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestCreateAndFindByNumberWithItems(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := mustCreateOrder(t, repo, nil)

	found, err := repo.FindByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Items, 1)
	require.Equal(t, 3, found.Items[0].Quantity)
	require.True(t, found.Total.Equal(decimal.RequireFromString("8.50")))

	missing, err := repo.FindByNumber(ctx, "ORD-0-000")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := mustCreateOrder(t, repo, nil)

	changed, err := repo.MarkPaid(ctx, order.ID, "ref-1", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, changed)

	// second confirmation is a no-op and must not clobber the reference
	changed, err = repo.MarkPaid(ctx, order.ID, "ref-2", time.Now().UTC())
	require.NoError(t, err)
	require.False(t, changed)

	reloaded, err := repo.FindByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	require.True(t, reloaded.Paid)
	require.Equal(t, "ref-1", reloaded.PaymentRef)
}

func TestClaimGuestOrdersHonorsWindow(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	email := fmt.Sprintf("a-%s@x.com", uuid.NewString()[:8])

	recent := mustCreateOrder(t, repo, func(o *models.Order) {
		o.Email = email
		o.CreatedAt = time.Now().UTC().Add(-2 * 24 * time.Hour)
	})
	old := mustCreateOrder(t, repo, func(o *models.Order) {
		o.Email = email
		o.CreatedAt = time.Now().UTC().Add(-40 * 24 * time.Hour)
	})

	userID := uuid.New()
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	claimed, err := repo.ClaimGuestOrders(ctx, userID, email, "", cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(1), claimed)

	reloaded, err := repo.FindByNumber(ctx, recent.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, reloaded.UserID)
	require.Equal(t, userID, *reloaded.UserID)

	stale, err := repo.FindByNumber(ctx, old.OrderNumber)
	require.NoError(t, err)
	require.Nil(t, stale.UserID)
}

func TestClaimGuestOrdersMatchesPhone(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	phone := fmt.Sprintf("9%s", uuid.NewString()[:7])

	order := mustCreateOrder(t, repo, func(o *models.Order) {
		o.ContactPhone = phone
	})

	userID := uuid.New()
	claimed, err := repo.ClaimGuestOrders(ctx, userID, "", phone, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), claimed)

	reloaded, err := repo.FindByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, reloaded.UserID)
}

func TestClaimGuestOrdersSkipsOwnedOrders(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	email := fmt.Sprintf("owned-%s@x.com", uuid.NewString()[:8])
	owner := uuid.New()

	mustCreateOrder(t, repo, func(o *models.Order) {
		o.Email = email
		o.UserID = &owner
	})

	claimed, err := repo.ClaimGuestOrders(ctx, uuid.New(), email, "", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, claimed)
}

func TestListByUserNewestFirst(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	older := mustCreateOrder(t, repo, func(o *models.Order) {
		o.UserID = &userID
		o.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	})
	newer := mustCreateOrder(t, repo, func(o *models.Order) {
		o.UserID = &userID
		o.CreatedAt = time.Now().UTC().Add(-time.Hour)
	})

	rows, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, newer.OrderNumber, rows[0].OrderNumber)
	require.Equal(t, older.OrderNumber, rows[1].OrderNumber)
}
