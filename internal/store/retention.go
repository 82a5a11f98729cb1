package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionWorkerInterval = time.Hour

// StartRetentionWorker periodically prunes archived messages older than
// retention. A zero retention keeps messages forever and starts nothing.
func StartRetentionWorker(ctx context.Context, repo Repository, retention time.Duration) {
	if retention <= 0 {
		slog.Info("Transcript retention disabled")
		return
	}

	ticker := time.NewTicker(retentionWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", retentionWorkerInterval, "retention", retention)

		prune(ctx, repo, retention)
		for {
			select {
			case <-ticker.C:
				prune(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func prune(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := repo.PruneMessages(ctx, retention)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Retention worker failed to prune messages", "error", err)
		}
		return
	}
	if deleted > 0 {
		slog.Info("Pruned archived messages", "count", deleted)
	}
}
