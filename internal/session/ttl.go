package session

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often idle sessions are looked for.
const DefaultSweepInterval = 5 * time.Minute

// StartEvictionWorker runs a background goroutine that periodically closes
// page sessions idle for longer than ttl.
func StartEvictionWorker(ctx context.Context, r *Registry, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session eviction worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case now := <-ticker.C:
				if n := r.EvictIdle(ttl, now); n > 0 {
					slog.Info("Evicted idle conversation sessions", "count", n, "remaining", r.Len())
				}
			case <-ctx.Done():
				slog.Info("Session eviction worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
