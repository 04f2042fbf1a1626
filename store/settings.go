package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Settings are the externally editable knobs the automation core consumes.
// The core re-reads them at every decision point, so edits made while a run
// is in progress take effect on the next quota check.
type Settings struct {
	DailyLimit         int           `json:"dailyLimit"`
	WeeklyLimit        int           `json:"weeklyLimit"`
	CooldownMin        time.Duration `json:"-"`
	CooldownMax        time.Duration `json:"-"`
	CooldownMinMs      int64         `json:"cooldownMin"`
	CooldownMaxMs      int64         `json:"cooldownMax"`
	BusinessHoursOnly  bool          `json:"businessHoursOnly"`
	BusinessHoursStart int           `json:"businessHoursStart"`
	BusinessHoursEnd   int           `json:"businessHoursEnd"`
	WarmupEnabled      bool          `json:"warmupEnabled"`
	WarmupDay          int           `json:"warmupDay"`
	LastWarmupDate     string        `json:"-"`
	DryRun             bool          `json:"dryRun"`
}

// DefaultSettings are applied until the user saves their own.
func DefaultSettings() Settings {
	return withDerived(Settings{
		DailyLimit:         25,
		WeeklyLimit:        100,
		CooldownMinMs:      30_000,
		CooldownMaxMs:      90_000,
		BusinessHoursOnly:  true,
		BusinessHoursStart: 9,
		BusinessHoursEnd:   18,
		WarmupEnabled:      true,
		WarmupDay:          1,
		DryRun:             false,
	})
}

func withDerived(s Settings) Settings {
	s.CooldownMin = time.Duration(s.CooldownMinMs) * time.Millisecond
	s.CooldownMax = time.Duration(s.CooldownMaxMs) * time.Millisecond
	return s
}

// GetSettings returns the persisted settings, or the defaults when nothing
// has been saved yet.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.DB.QueryRowContext(ctx, `
		SELECT daily_limit, weekly_limit, cooldown_min_ms, cooldown_max_ms,
		       business_hours_only, business_hours_start, business_hours_end,
		       warmup_enabled, warmup_day, last_warmup_date, dry_run
		FROM settings WHERE id = 1`).Scan(
		&out.DailyLimit, &out.WeeklyLimit, &out.CooldownMinMs, &out.CooldownMaxMs,
		&out.BusinessHoursOnly, &out.BusinessHoursStart, &out.BusinessHoursEnd,
		&out.WarmupEnabled, &out.WarmupDay, &out.LastWarmupDate, &out.DryRun)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("store: get settings: %w", err)
	}
	return withDerived(out), nil
}

// SaveSettings persists the full settings object (single-row upsert).
func (s *Store) SaveSettings(ctx context.Context, in Settings) error {
	in = withDerived(in)
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (
			id, daily_limit, weekly_limit, cooldown_min_ms, cooldown_max_ms,
			business_hours_only, business_hours_start, business_hours_end,
			warmup_enabled, warmup_day, last_warmup_date, dry_run
		) VALUES (1,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			daily_limit = excluded.daily_limit,
			weekly_limit = excluded.weekly_limit,
			cooldown_min_ms = excluded.cooldown_min_ms,
			cooldown_max_ms = excluded.cooldown_max_ms,
			business_hours_only = excluded.business_hours_only,
			business_hours_start = excluded.business_hours_start,
			business_hours_end = excluded.business_hours_end,
			warmup_enabled = excluded.warmup_enabled,
			warmup_day = excluded.warmup_day,
			last_warmup_date = excluded.last_warmup_date,
			dry_run = excluded.dry_run`,
		in.DailyLimit, in.WeeklyLimit, in.CooldownMinMs, in.CooldownMaxMs,
		in.BusinessHoursOnly, in.BusinessHoursStart, in.BusinessHoursEnd,
		in.WarmupEnabled, in.WarmupDay, in.LastWarmupDate, in.DryRun)
	if err != nil {
		return fmt.Errorf("store: save settings: %w", err)
	}
	return nil
}
