package dto

import (
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/google/uuid"
)

type AddCartItemRequest struct {
	MenuItemID uuid.UUID `json:"menu_item_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1,max=50"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=50"`
}

type CartResponse struct {
	Items     []models.CartItem `json:"items"`
	ItemCount int               `json:"item_count"`
	Subtotal  int64             `json:"subtotal"`
}
