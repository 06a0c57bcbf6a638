// AngelaMos | 2026
// sweeper.go

package fulfillment

import (
	"context"
	"log/slog"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

// TokenSweeper deletes download tokens once they are past expiry plus the
// retention window.
type TokenSweeper struct {
	db        core.DBTX
	newRepo   func(core.DBTX) Repository
	clock     core.Clock
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

func NewTokenSweeper(
	db core.DBTX,
	newRepo func(core.DBTX) Repository,
	clock core.Clock,
	interval, retention time.Duration,
	logger *slog.Logger,
) *TokenSweeper {
	return &TokenSweeper{
		db:        db,
		newRepo:   newRepo,
		clock:     clock,
		interval:  interval,
		retention: retention,
		logger:    logger.With("component", "token_sweeper"),
	}
}

func (s *TokenSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.retention)

	n, err := s.newRepo(s.db).DeleteExpiredTokens(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("expired download tokens removed", "count", n)
	}
	return n, nil
}

func (s *TokenSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("token sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("token sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("token sweep failed", "error", err)
			}
		}
	}
}
