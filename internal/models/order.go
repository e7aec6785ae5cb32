package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderStatusCreated = "created"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

type Order struct {
	ID               uuid.UUID   `gorm:"size:36;primaryKey" json:"id"`
	UserID           uuid.UUID   `gorm:"size:36;not null;index" json:"-"`
	Amount           int64       `gorm:"not null" json:"amount"`
	Currency         string      `gorm:"size:3;not null" json:"currency"`
	Status           string      `gorm:"size:20;not null;index" json:"status"`
	GatewayOrderID   string      `gorm:"size:64;not null;uniqueIndex" json:"gateway_order_id"`
	GatewayPaymentID *string     `gorm:"size:64" json:"gateway_payment_id,omitempty"`
	AddressLine      string      `gorm:"size:255" json:"address_line"`
	City             string      `gorm:"size:100" json:"city"`
	State            string      `gorm:"size:100" json:"state"`
	Pincode          string      `gorm:"size:12" json:"pincode"`
	Items            []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	PaidAt           *time.Time  `json:"paid_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem snapshots the menu item as it was priced when the order was placed.
type OrderItem struct {
	ID         uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"size:36;not null;index" json:"-"`
	MenuItemID uuid.UUID `gorm:"size:36;not null" json:"menu_item_id"`
	Name       string    `gorm:"size:150;not null" json:"name"`
	UnitPrice  int64     `gorm:"not null" json:"unit_price"`
	Quantity   int       `gorm:"not null" json:"quantity"`
}

func (i *OrderItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// All returns every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&MenuItem{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&SystemLog{},
	}
}
