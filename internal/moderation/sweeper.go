package moderation

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically lifts expired timed sanctions
type Sweeper struct {
	log      *slog.Logger
	engine   *Engine
	interval time.Duration
}

// NewSweeper creates a sweeper running every interval
func NewSweeper(log *slog.Logger, engine *Engine, interval time.Duration) *Sweeper {
	return &Sweeper{log: log, engine: engine, interval: interval}
}

// Run sweeps until ctx is done
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns the number of sanctions lifted
func (s *Sweeper) Sweep(ctx context.Context) int {
	actions, err := s.engine.ExpireSanctions(ctx, "")
	if err != nil {
		// the rest is retried on the next tick
		s.log.Error("sanction sweep failed", "error", err, "lifted", len(actions))
	}
	if len(actions) > 0 {
		s.log.Info("expired sanctions lifted", "count", len(actions))
	}
	return len(actions)
}
