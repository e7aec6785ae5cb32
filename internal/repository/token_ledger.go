package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenLedger persists issued refresh tokens. Every mutation is a single
// UPDATE or DELETE statement, so callers need no in-process locking.
type TokenLedger interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// FindActive returns the record for tokenHash that is neither revoked nor
	// past its expiry, or ErrNotFound.
	FindActive(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// RevokeAllForUser flips every non-revoked record of userID.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	RevokeByHash(ctx context.Context, tokenHash string) (int64, error)
	// DeleteRevokedOrExpired removes records that are revoked or expired at now.
	DeleteRevokedOrExpired(ctx context.Context, now time.Time) (int64, error)
	CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

type GormTokenLedger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTokenLedger(db *gorm.DB) *GormTokenLedger {
	return &GormTokenLedger{db: db, now: time.Now}
}

func (l *GormTokenLedger) Create(ctx context.Context, token *models.RefreshToken) error {
	if err := l.db.WithContext(ctx).Create(token).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (l *GormTokenLedger) FindActive(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := l.db.WithContext(ctx).
		Where("token_hash = ? AND revoked = ? AND expires_at > ?", tokenHash, false, l.now().UTC()).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &token, nil
}

func (l *GormTokenLedger) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := l.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if result.Error != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (l *GormTokenLedger) RevokeByHash(ctx context.Context, tokenHash string) (int64, error) {
	result := l.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked = ?", tokenHash, false).
		Update("revoked", true)
	if result.Error != nil {
		return 0, fmt.Errorf("revoke refresh token: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (l *GormTokenLedger) DeleteRevokedOrExpired(ctx context.Context, now time.Time) (int64, error) {
	result := l.db.WithContext(ctx).
		Where("revoked = ? OR expires_at <= ?", true, now.UTC()).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("sweep refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (l *GormTokenLedger) CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count refresh tokens: %w", err)
	}
	return count, nil
}
