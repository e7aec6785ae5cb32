package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a storefront customer. Phone is the login key; phone and email are
// each globally unique.
type User struct {
	ID           uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:idx_users_email" json:"email"`
	Phone        string    `gorm:"size:20;not null;uniqueIndex:idx_users_phone" json:"phone"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"size:20;default:'user'" json:"role"`
	AddressLine  string    `gorm:"size:255" json:"address_line"`
	City         string    `gorm:"size:100" json:"city"`
	State        string    `gorm:"size:100" json:"state"`
	Pincode      string    `gorm:"size:12" json:"pincode"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) HasAddress() bool {
	return u.AddressLine != "" && u.City != "" && u.Pincode != ""
}
