package quota

import (
	"context"
	"fmt"
)

// AdvanceWarmup raises the warmup day by one if the warmup cap is still
// below the configured daily limit. Idempotent per calendar day: the
// persisted last-advance date gates it, so the hourly scheduler tick can
// fire any number of times without over-advancing.
func (e *Engine) AdvanceWarmup(ctx context.Context) error {
	settings, err := e.Store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("quota: advance warmup: %w", err)
	}
	if !settings.WarmupEnabled {
		return nil
	}

	today := e.now().Format("2006-01-02")
	if settings.LastWarmupDate == today {
		return nil
	}

	// First-ever tick only stamps the date: the install day is day one,
	// not a day of warmup already served.
	if settings.LastWarmupDate != "" && settings.WarmupDay*WarmupStep < settings.DailyLimit {
		settings.WarmupDay++
	}
	settings.LastWarmupDate = today
	if err := e.Store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("quota: advance warmup: %w", err)
	}
	return nil
}
