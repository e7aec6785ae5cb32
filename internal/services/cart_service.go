package services

import (
	"context"
	"errors"
	"time"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxCartQuantity = 50

var (
	ErrCartItemNotFound    = apperrors.NotFound("item not in cart")
	ErrMenuItemUnavailable = apperrors.Validation("menu item is not available")
	ErrQuantityTooLarge    = apperrors.Validation("quantity must be at most 50")
)

type CartService struct {
	db *gorm.DB
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

func (s *CartService) Get(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	items, err := s.items(ctx, s.db, userID)
	if err != nil {
		return nil, apperrors.Dependency("failed to load cart", err)
	}
	return summarize(items), nil
}

func (s *CartService) items(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]models.CartItem, error) {
	items := make([]models.CartItem, 0)
	err := db.WithContext(ctx).
		Preload("MenuItem").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func summarize(items []models.CartItem) *dto.CartResponse {
	resp := &dto.CartResponse{Items: items}
	for _, it := range items {
		resp.ItemCount += it.Quantity
		resp.Subtotal += it.MenuItem.Price * int64(it.Quantity)
	}
	return resp
}

// AddItem puts quantity of a menu item in the cart, adding to any quantity
// already there.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, req *dto.AddCartItemRequest) (*dto.CartResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var menuItem models.MenuItem
		if err := tx.Where("id = ?", req.MenuItemID).First(&menuItem).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMenuItemNotFound
			}
			return err
		}
		if !menuItem.Available {
			return ErrMenuItemUnavailable
		}

		// Concurrent first adds of the same item land on the unique index and
		// increment instead of failing.
		item := &models.CartItem{UserID: userID, MenuItemID: req.MenuItemID, Quantity: req.Quantity}
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "menu_item_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + ?", req.Quantity),
				"updated_at": time.Now().UTC(),
			}),
		}).Create(item).Error
		if err != nil {
			return err
		}

		var stored models.CartItem
		if err := tx.Where("user_id = ? AND menu_item_id = ?", userID, req.MenuItemID).First(&stored).Error; err != nil {
			return err
		}
		if stored.Quantity > maxCartQuantity {
			return ErrQuantityTooLarge
		}
		return nil
	})
	if err != nil {
		return nil, wrapCartErr("failed to add cart item", err)
	}
	return s.Get(ctx, userID)
}

// SetQuantity overwrites the quantity of an item; zero removes it.
func (s *CartService) SetQuantity(ctx context.Context, userID, menuItemID uuid.UUID, req *dto.UpdateCartItemRequest) (*dto.CartResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	if req.Quantity == 0 {
		return s.RemoveItem(ctx, userID, menuItemID)
	}

	result := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("user_id = ? AND menu_item_id = ?", userID, menuItemID).
		Update("quantity", req.Quantity)
	if result.Error != nil {
		return nil, apperrors.Dependency("failed to update cart item", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrCartItemNotFound
	}
	return s.Get(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, menuItemID uuid.UUID) (*dto.CartResponse, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND menu_item_id = ?", userID, menuItemID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return nil, apperrors.Dependency("failed to remove cart item", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrCartItemNotFound
	}
	return s.Get(ctx, userID)
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return apperrors.Dependency("failed to clear cart", err)
	}
	return nil
}

func wrapCartErr(msg string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Dependency(msg, err)
}
