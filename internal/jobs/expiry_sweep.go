// Package jobs holds the service's scheduled background work.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper expires overdue role assignments and reports how many users were
// affected
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// sweepTimeout bounds one sweep run
const sweepTimeout = 30 * time.Second

// StartExpirySweep schedules the expiry sweep on the given cron expression
// and returns the running scheduler. The sweep is a safety net: the store
// already filters expired rows out of every read, so the sweep only moves
// their status for audit accuracy and drops affected users' cached
// decisions.
func StartExpirySweep(schedule string, sweeper Sweeper, logger *slog.Logger) (*cron.Cron, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		affected, err := sweeper.SweepExpired(ctx)
		if err != nil {
			logger.Error("expiry sweep failed", slog.String("error", err.Error()))
			return
		}
		if affected > 0 {
			logger.Info("expiry sweep completed", slog.Int("users_affected", affected))
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
