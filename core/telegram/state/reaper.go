package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/aquapure/waterbot/core/logger"
)

// RunReaper periodically evicts sessions idle for longer than maxIdle. It
// blocks until ctx is cancelled and is meant to run in its own goroutine.
func RunReaper(ctx context.Context, mgr Manager, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mgr.Reap(maxIdle); n > 0 {
				logger.Debug(ctx, "tg", "session.reap",
					slog.String("status", "ok"),
					slog.Int("reaped", n),
					slog.Duration("max_idle", maxIdle),
				)
			}
		}
	}
}
