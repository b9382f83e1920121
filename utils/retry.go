package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultRetryTimes    = 3
	DefaultRetryInterval = 100 * time.Millisecond
)

// Retry calls fn up to times attempts, sleeping interval between them. It stops early when
// ctx is done and returns the last error.
func Retry(ctx context.Context, name string, times int, interval time.Duration, logger *slog.Logger, fn func(context.Context) error) error {
	var lastErr error
	for i := 0; i < times; i++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		logger.Warn("Attempt failed, retrying...", "op", name, "attempt", i+1, "err", lastErr)
		if i == times-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, times, lastErr)
}
