package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/foodcourt/storefront-api/internal/repository"
)

// TokenSweeper deletes revoked and expired refresh tokens from the ledger.
type TokenSweeper struct {
	ledger   repository.TokenLedger
	interval time.Duration
	now      func() time.Time
}

func NewTokenSweeper(ledger repository.TokenLedger, interval time.Duration) *TokenSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenSweeper{ledger: ledger, interval: interval, now: time.Now}
}

// Sweep runs one pass and returns the number of deleted records.
func (s *TokenSweeper) Sweep(ctx context.Context) (int64, error) {
	deleted, err := s.ledger.DeleteRevokedOrExpired(ctx, s.now())
	if err != nil {
		slog.Error("refresh token sweep failed", "error", err)
		return 0, err
	}
	if deleted > 0 {
		slog.Info("refresh token sweep completed", "deleted", deleted)
	}
	return deleted, nil
}

// Start sweeps on every tick until done is closed.
func (s *TokenSweeper) Start(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				_, _ = s.Sweep(ctx)
				cancel()
			case <-done:
				return
			}
		}
	}()
}
