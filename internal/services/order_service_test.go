package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/foodcourt/storefront-api/internal/payment"
	"github.com/foodcourt/storefront-api/internal/repository"
	"github.com/foodcourt/storefront-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const stubKeySecret = "gateway-secret"

type stubGateway struct {
	calls   int
	err     error
	orderID string
}

func (g *stubGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*payment.Order, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	id := g.orderID
	if id == "" {
		id = "order_" + receipt[:8]
	}
	return &payment.Order{ID: id, Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return payment.Sign(stubKeySecret, orderID, paymentID) == signature
}

func (g *stubGateway) KeyID() string { return "key_test" }

type orderFixture struct {
	db      *gorm.DB
	orders  *OrderService
	carts   *CartService
	gateway *stubGateway
	user    *models.User
	menu    []models.MenuItem
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	user := &models.User{
		Name: "Asha Rao", Email: "asha@example.com", Phone: "9876543210", PasswordHash: "hash",
		AddressLine: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001",
	}
	require.NoError(t, users.Create(context.Background(), user))
	gw := &stubGateway{}
	return &orderFixture{
		db:      db,
		orders:  NewOrderService(db, users, gw, "INR"),
		carts:   NewCartService(db),
		gateway: gw,
		user:    user,
		menu:    seedMenu(t, db),
	}
}

func (f *orderFixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, f.user.ID, &dto.AddCartItemRequest{MenuItemID: f.menu[0].ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, f.user.ID, &dto.AddCartItemRequest{MenuItemID: f.menu[2].ID, Quantity: 1})
	require.NoError(t, err)
}

func TestCreateOrderFromCart(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t)

	resp, err := f.orders.Create(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2*24900+14900, resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "key_test", resp.GatewayKeyID)
	assert.Equal(t, models.OrderStatusCreated, resp.Order.Status)
	assert.Equal(t, "Bengaluru", resp.Order.City)
	assert.Len(t, resp.Order.Items, 2)

	stored, err := f.orders.Get(context.Background(), f.user.ID, resp.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.GatewayOrderID, stored.GatewayOrderID)
	assert.Len(t, stored.Items, 2)
}

func TestCreateOrderRequiresCartAndAddress(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.orders.Create(ctx, f.user.ID)
	assert.ErrorIs(t, err, ErrCartEmpty)

	f.fillCart(t)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", f.user.ID).Update("address_line", "").Error)
	_, err = f.orders.Create(ctx, f.user.ID)
	assert.ErrorIs(t, err, ErrAddressMissing)
	assert.Zero(t, f.gateway.calls)
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t)
	f.gateway.err = errors.New("gateway down")

	_, err := f.orders.Create(context.Background(), f.user.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDependency, apperrors.KindOf(err))

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderLogsGatewayOrderWhenStoreFails(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t)

	// An existing row already holds the gateway id, so the insert hits the unique index.
	require.NoError(t, f.db.Create(&models.Order{
		UserID: f.user.ID, Amount: 100, Currency: "INR", Status: models.OrderStatusCreated, GatewayOrderID: "order_gw_dup",
	}).Error)
	f.gateway.orderID = "order_gw_dup"

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, err := f.orders.Create(context.Background(), f.user.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDependency, apperrors.KindOf(err))
	assert.Equal(t, 1, f.gateway.calls)
	assert.Contains(t, logs.String(), `"gateway_order_id":"order_gw_dup"`)
}

func TestVerifyPayment(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t)
	ctx := context.Background()

	resp, err := f.orders.Create(ctx, f.user.ID)
	require.NoError(t, err)

	req := &dto.VerifyPaymentRequest{
		GatewayOrderID:   resp.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        payment.Sign(stubKeySecret, resp.GatewayOrderID, "pay_123"),
	}
	order, err := f.orders.Verify(ctx, f.user.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	require.NotNil(t, order.GatewayPaymentID)
	assert.Equal(t, "pay_123", *order.GatewayPaymentID)
	assert.NotNil(t, order.PaidAt)

	cart, err := f.carts.Get(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	again, err := f.orders.Verify(ctx, f.user.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, again.Status)

	orders, err := f.orders.List(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t)
	ctx := context.Background()

	resp, err := f.orders.Create(ctx, f.user.ID)
	require.NoError(t, err)

	_, err = f.orders.Verify(ctx, f.user.ID, &dto.VerifyPaymentRequest{
		GatewayOrderID:   resp.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        payment.Sign("wrong-secret", resp.GatewayOrderID, "pay_123"),
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	order, err := f.orders.Get(ctx, f.user.ID, resp.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, order.Status)

	cart, err := f.carts.Get(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestOrdersAreScopedToOwner(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t)
	ctx := context.Background()

	resp, err := f.orders.Create(ctx, f.user.ID)
	require.NoError(t, err)

	_, err = f.orders.Get(ctx, uuid.New(), resp.Order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.orders.Verify(ctx, uuid.New(), &dto.VerifyPaymentRequest{
		GatewayOrderID:   resp.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        payment.Sign(stubKeySecret, resp.GatewayOrderID, "pay_1"),
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
