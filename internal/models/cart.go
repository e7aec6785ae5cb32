package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CartItem struct {
	ID         uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"size:36;not null;uniqueIndex:idx_cart_user_item" json:"-"`
	MenuItemID uuid.UUID `gorm:"size:36;not null;uniqueIndex:idx_cart_user_item" json:"menu_item_id"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	MenuItem   MenuItem  `gorm:"foreignKey:MenuItemID" json:"menu_item"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c *CartItem) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
