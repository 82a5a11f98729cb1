package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 50 * time.Millisecond
)

// IsConflictError reports whether err is a SQLITE_BUSY or "database is locked"
// error. Both are transient under concurrent writers and worth retrying.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry runs fn, retrying conflict errors with exponential backoff
// (50ms, 100ms, ...).
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < defaultMaxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsConflictError(err) || i == defaultMaxRetries-1 {
			break
		}

		delay := defaultRetryDelay * time.Duration(1<<i)
		slog.Debug("Database locked, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
