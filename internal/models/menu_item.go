package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MenuItem is a sellable dish. Price is in minor currency units (paise).
type MenuItem struct {
	ID          uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	Name        string    `gorm:"size:150;not null;index" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:80;not null;index" json:"category"`
	Price       int64     `gorm:"not null" json:"price"`
	ImageURL    string    `gorm:"size:500" json:"image_url"`
	IsVeg       bool      `gorm:"not null;default:false" json:"is_veg"`
	Available   bool      `gorm:"not null;index" json:"available"`
	Rating      float64   `gorm:"default:0" json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *MenuItem) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
