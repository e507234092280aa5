package scrape

import (
	"context"
	"fmt"
	"time"
)

// sleep waits for d or until ctx is done. Non-positive durations return
// immediately.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settle wait canceled: %w", ctx.Err())
	}
}
