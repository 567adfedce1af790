package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	"github.com/aurellebeauty/aurelle-backend/pkg/pagination"
	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number INTEGER NOT NULL,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  payment_method TEXT NOT NULL,
  payment_intent_id TEXT,
  currency TEXT NOT NULL DEFAULT 'INR',
  subtotal_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  shipping_address TEXT,
  invoice_sent INTEGER NOT NULL DEFAULT 0,
  invoice_sent_at DATETIME,
  invoice_number TEXT,
  notes TEXT,
  cancelled_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	shipments := `
CREATE TABLE IF NOT EXISTS shipments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'none',
  carrier_order_id TEXT,
  carrier_shipment_id TEXT,
  awb_code TEXT,
  courier_name TEXT,
  tracking_url TEXT,
  label_url TEXT,
  awb_error TEXT,
  awb_error_code TEXT,
  awb_retry_count INTEGER NOT NULL DEFAULT 0,
  last_awb_attempt_at DATETIME,
  carrier_status TEXT,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	require.NoError(t, db.Exec(shipments).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, number int64, status enums.OrderStatus, created time.Time, qty int) *models.Order {
	t.Helper()

	total := qty * 59900
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   number,
		UserID:        userID,
		Status:        status,
		PaymentMethod: enums.PaymentMethodOnline,
		SubtotalCents: total,
		TotalCents:    total,
		ShippingAddress: types.Address{
			Name:       "Priya Sharma",
			Line1:      "12 MG Road",
			City:       "Bengaluru",
			State:      "Karnataka",
			PostalCode: "560001",
			Country:    "India",
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, db.Create(order).Error)

	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      uuid.New(),
		SKU:            "AUR-LT-01",
		Name:           "Rose Lip Tint",
		Qty:            qty,
		UnitPriceCents: 59900,
		TotalCents:     total,
		CreatedAt:      created,
	}
	require.NoError(t, db.Create(item).Error)
	return order
}

func TestRepositoryListUserOrders_pagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	userID := uuid.New()
	now := time.Now().UTC()
	seedOrder(t, db, userID, 10001, enums.OrderStatusDelivered, now.Add(-time.Hour), 2)
	seedOrder(t, db, userID, 10002, enums.OrderStatusProcessing, now, 3)
	seedOrder(t, db, uuid.New(), 10003, enums.OrderStatusProcessing, now, 1)

	list, err := repo.ListUserOrders(context.Background(), userID, pagination.Params{Limit: 1}, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.NotEmpty(t, list.NextCursor)
	assert.Equal(t, int64(10002), list.Orders[0].OrderNumber)
	assert.Equal(t, 3, list.Orders[0].TotalItems)

	second, err := repo.ListUserOrders(context.Background(), userID, pagination.Params{Limit: 1, Cursor: list.NextCursor}, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, int64(10001), second.Orders[0].OrderNumber)
	assert.Empty(t, second.NextCursor)
}

func TestRepositoryListUserOrders_statusFilter(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	userID := uuid.New()
	now := time.Now().UTC()
	seedOrder(t, db, userID, 10001, enums.OrderStatusDelivered, now.Add(-time.Hour), 1)
	seedOrder(t, db, userID, 10002, enums.OrderStatusProcessing, now, 1)

	status := enums.OrderStatusDelivered
	list, err := repo.ListUserOrders(context.Background(), userID, pagination.Params{Limit: 10}, OrderFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, int64(10001), list.Orders[0].OrderNumber)
	assert.Empty(t, list.NextCursor)
}

func TestRepositoryClaimInvoiceSend_once(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), 10001, enums.OrderStatusProcessing, time.Now().UTC(), 1)

	claimed, err := repo.ClaimInvoiceSend(context.Background(), order.ID, "AUR-INV-10001")
	require.NoError(t, err)
	assert.True(t, claimed)

	again, err := repo.ClaimInvoiceSend(context.Background(), order.ID, "AUR-INV-10001")
	require.NoError(t, err)
	assert.False(t, again, "second claim must lose")

	require.NoError(t, repo.ReleaseInvoiceClaim(context.Background(), order.ID))

	retried, err := repo.ClaimInvoiceSend(context.Background(), order.ID, "AUR-INV-10001")
	require.NoError(t, err)
	assert.True(t, retried, "claim must succeed after release")
}

func TestRepositoryFindByPaymentIntent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), 10001, enums.OrderStatusProcessing, time.Now().UTC(), 2)
	intentID := uuid.New()
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("payment_intent_id", intentID).Error)

	found, err := repo.FindByPaymentIntent(context.Background(), intentID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "AUR-LT-01", found.Items[0].SKU)

	_, err = repo.FindByPaymentIntent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
