package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/foodcourt/storefront-api/internal/payment"
	"github.com/foodcourt/storefront-api/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCartEmpty        = apperrors.Validation("cart is empty")
	ErrAddressMissing   = apperrors.Validation("delivery address is required")
	ErrOrderNotFound    = apperrors.NotFound("order not found")
	ErrInvalidSignature = apperrors.Validation("payment signature verification failed")
)

// OrderService turns a cart into a gateway order and settles it once the
// client returns a signed payment.
type OrderService struct {
	db       *gorm.DB
	users    repository.UserRepository
	gateway  payment.Gateway
	currency string
	now      func() time.Time
}

func NewOrderService(db *gorm.DB, users repository.UserRepository, gateway payment.Gateway, currency string) *OrderService {
	if currency == "" {
		currency = "INR"
	}
	return &OrderService{db: db, users: users, gateway: gateway, currency: currency, now: time.Now}
}

func (s *OrderService) Create(ctx context.Context, userID uuid.UUID) (*dto.CreateOrderResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperrors.Dependency("failed to load user", err)
	}
	if !user.HasAddress() {
		return nil, ErrAddressMissing
	}

	cartItems := make([]models.CartItem, 0)
	if err := s.db.WithContext(ctx).Preload("MenuItem").Where("user_id = ?", userID).Find(&cartItems).Error; err != nil {
		return nil, apperrors.Dependency("failed to load cart", err)
	}
	if len(cartItems) == 0 {
		return nil, ErrCartEmpty
	}

	order := &models.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Currency:    s.currency,
		Status:      models.OrderStatusCreated,
		AddressLine: user.AddressLine,
		City:        user.City,
		State:       user.State,
		Pincode:     user.Pincode,
	}
	for _, ci := range cartItems {
		if !ci.MenuItem.Available {
			return nil, apperrors.Validation(ci.MenuItem.Name + " is no longer available")
		}
		order.Amount += ci.MenuItem.Price * int64(ci.Quantity)
		order.Items = append(order.Items, models.OrderItem{
			MenuItemID: ci.MenuItemID,
			Name:       ci.MenuItem.Name,
			UnitPrice:  ci.MenuItem.Price,
			Quantity:   ci.Quantity,
		})
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, order.Amount, order.Currency, order.ID.String())
	if err != nil {
		slog.Error("payment gateway order failed", "error", err, "user_id", userID.String(), "order_id", order.ID.String())
		return nil, apperrors.Dependency("failed to create payment order", err)
	}
	order.GatewayOrderID = gwOrder.ID

	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		// The gateway order now exists with no local row pointing at it.
		slog.Error("failed to store order after gateway order was created",
			"error", err,
			"user_id", userID.String(),
			"order_id", order.ID.String(),
			"gateway_order_id", gwOrder.ID,
			"amount", order.Amount,
		)
		return nil, apperrors.Dependency("failed to store order", err)
	}

	slog.Info("order created", "user_id", userID.String(), "order_id", order.ID.String(), "amount", order.Amount)
	return &dto.CreateOrderResponse{
		Order:          order,
		GatewayOrderID: gwOrder.ID,
		GatewayKeyID:   s.gateway.KeyID(),
		Amount:         order.Amount,
		Currency:       order.Currency,
	}, nil
}

// Verify settles an order from the signed payment the client received from
// the gateway. A paid order is returned unchanged; a bad signature fails it.
func (s *OrderService) Verify(ctx context.Context, userID uuid.UUID, req *dto.VerifyPaymentRequest) (*models.Order, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	var order models.Order
	err := s.db.WithContext(ctx).
		Where("gateway_order_id = ? AND user_id = ?", req.GatewayOrderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, apperrors.Dependency("failed to load order", err)
	}

	if order.Status == models.OrderStatusPaid {
		return s.Get(ctx, userID, order.ID)
	}

	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		slog.Warn("payment signature mismatch", "user_id", userID.String(), "order_id", order.ID.String())
		if err := s.db.WithContext(ctx).Model(&order).Update("status", models.OrderStatusFailed).Error; err != nil {
			slog.Error("failed to mark order failed", "error", err, "order_id", order.ID.String())
		}
		return nil, ErrInvalidSignature
	}

	paidAt := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&order).Omit(clause.Associations).Updates(map[string]interface{}{
			"status":             models.OrderStatusPaid,
			"gateway_payment_id": req.GatewayPaymentID,
			"paid_at":            paidAt,
		}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, apperrors.Dependency("failed to settle order", err)
	}

	slog.Info("order paid", "user_id", userID.String(), "order_id", order.ID.String())
	return s.Get(ctx, userID, order.ID)
}

func (s *OrderService) List(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, apperrors.Dependency("failed to list orders", err)
	}
	return orders, nil
}

func (s *OrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, apperrors.Dependency("failed to load order", err)
	}
	return &order, nil
}
