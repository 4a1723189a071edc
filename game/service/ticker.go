package service

import (
	"context"
	"fmt"
	"time"
)

// RunTicker calls svc.TickAll every interval until ctx is done. onTick, when
// set, receives the non-empty update batches.
func RunTicker(ctx context.Context, svc GameService, interval time.Duration, onTick func([]TickUpdate)) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			updates := svc.TickAll(ctx)
			if len(updates) > 0 && onTick != nil {
				onTick(updates)
			}
		}
	}
}
