package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken is one issued refresh credential. Only the SHA-256 fingerprint
// of the signed token is stored.
type RefreshToken struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"size:36;not null;index:idx_refresh_tokens_user_revoked" json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false;index:idx_refresh_tokens_user_revoked" json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
