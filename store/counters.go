package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DailyStats are the per-calendar-day counters. The date key is computed on
// every read, so stale rows from previous days are simply never selected —
// a lazy rollover that needs no scheduled reset.
type DailyStats struct {
	Date    string `json:"date"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
}

// WeeklyStats are the per-ISO-week counters, keyed by the Monday the week
// started on.
type WeeklyStats struct {
	WeekStart string `json:"weekStart"`
	Sent      int    `json:"sent"`
}

func (s *Store) today() string {
	return s.Now().Format("2006-01-02")
}

func (s *Store) weekStart() string {
	now := s.Now()
	// Monday is the start of the week; Sunday counts as 6 days in.
	diff := (int(now.Weekday()) + 6) % 7
	return now.AddDate(0, 0, -diff).Format("2006-01-02")
}

// GetDailyStats returns today's counters, zeroed if no sends happened today.
func (s *Store) GetDailyStats(ctx context.Context) (DailyStats, error) {
	out := DailyStats{Date: s.today()}
	err := s.DB.QueryRowContext(ctx,
		`SELECT sent, skipped, errors FROM daily_stats WHERE date = ?`, out.Date).
		Scan(&out.Sent, &out.Skipped, &out.Errors)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return DailyStats{}, fmt.Errorf("store: daily stats: %w", err)
	}
	return out, nil
}

// dailyFields whitelists the incrementable columns; the field name reaches
// SQL text, so it must never come from unvalidated input.
var dailyFields = map[string]bool{"sent": true, "skipped": true, "errors": true}

// IncrementDaily adds one to today's counter for field (sent|skipped|errors).
func (s *Store) IncrementDaily(ctx context.Context, field string) error {
	if !dailyFields[field] {
		return fmt.Errorf("store: invalid daily field %q", field)
	}
	q := fmt.Sprintf(`
		INSERT INTO daily_stats (date, %[1]s) VALUES (?, 1)
		ON CONFLICT (date) DO UPDATE SET %[1]s = %[1]s + 1`, field)
	if _, err := s.DB.ExecContext(ctx, q, s.today()); err != nil {
		return fmt.Errorf("store: increment daily %s: %w", field, err)
	}
	return nil
}

// GetWeeklyStats returns this week's counters, zeroed if the week is fresh.
func (s *Store) GetWeeklyStats(ctx context.Context) (WeeklyStats, error) {
	out := WeeklyStats{WeekStart: s.weekStart()}
	err := s.DB.QueryRowContext(ctx,
		`SELECT sent FROM weekly_stats WHERE week_start = ?`, out.WeekStart).
		Scan(&out.Sent)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return WeeklyStats{}, fmt.Errorf("store: weekly stats: %w", err)
	}
	return out, nil
}

// IncrementWeekly adds one to this week's sent counter.
func (s *Store) IncrementWeekly(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO weekly_stats (week_start, sent) VALUES (?, 1)
		ON CONFLICT (week_start) DO UPDATE SET sent = sent + 1`, s.weekStart())
	if err != nil {
		return fmt.Errorf("store: increment weekly: %w", err)
	}
	return nil
}
