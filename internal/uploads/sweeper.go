package uploads

import (
	"context"
	"log/slog"
	"time"

	"github.com/JaimeStill/page-ingest/pkg/lifecycle"
)

// Sweep cancels every session that is past its TTL at now and returns how
// many were released. Individual failures are logged and skipped.
func Sweep(ctx context.Context, sys System, now time.Time, logger *slog.Logger) int {
	released := 0
	for _, id := range sys.Expired(now) {
		ok, err := sys.Cancel(ctx, id)
		if err != nil {
			logger.Warn("expired session cleanup failed", "session_id", id, "error", err)
			continue
		}
		if ok {
			released++
		}
	}
	return released
}

// StartSweeper runs Sweep on every tick of interval until the coordinator
// shuts down.
func StartSweeper(lc *lifecycle.Coordinator, sys System, interval time.Duration, logger *slog.Logger) {
	logger = logger.With("system", "upload-sweeper")

	lc.OnShutdown(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-lc.Context().Done():
				logger.Info("sweeper stopped")
				return
			case now := <-ticker.C:
				if n := Sweep(lc.Context(), sys, now, logger); n > 0 {
					logger.Info("expired sessions released", "count", n)
				}
			}
		}
	})
}
