// Package quota is the safety-limit engine: a side-effect-free gate over the
// persisted counters plus the warmup schedule that ramps a fresh account up
// to its configured daily cap.
//
// The gate never mutates counters. Increments happen through explicit store
// calls made by the page processor after an outcome is known, so repeated
// gate checks can never double-count.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/linkreach/store"
)

// WarmupStep is how many extra daily sends each warmup day unlocks.
const WarmupStep = 5

// Deny reasons. Stable strings: they flow into the activity log and the
// dashboard unchanged.
const (
	ReasonDailyLimit    = "daily_limit"
	ReasonWeeklyLimit   = "weekly_limit"
	ReasonBusinessHours = "outside_business_hours"
)

// Decision is the gate verdict plus the counters the caller may want for
// bookkeeping or status display.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`

	DailySent   int `json:"dailySent"`
	DailyLimit  int `json:"dailyLimit"` // effective, warmup-adjusted
	WeeklySent  int `json:"weeklySent"`
	WeeklyLimit int `json:"weeklyLimit"`
}

// Engine evaluates the send gate against the store. Settings are re-read on
// every call, so limit edits take effect at the next check.
type Engine struct {
	Store *store.Store

	// Now is the clock for the business-hours check. Defaults to the
	// store's clock so tests steer both together.
	Now func() time.Time
}

// New creates an Engine bound to st.
func New(st *store.Store) *Engine {
	return &Engine{Store: st, Now: st.Now}
}

// EffectiveDailyLimit is min(configured daily limit, warmupDay × WarmupStep)
// while warmup is enabled, else the configured limit.
func EffectiveDailyLimit(s store.Settings) int {
	if !s.WarmupEnabled {
		return s.DailyLimit
	}
	warmup := s.WarmupDay * WarmupStep
	if warmup < s.DailyLimit {
		return warmup
	}
	return s.DailyLimit
}

// CanSendMore decides whether one more send is allowed right now.
func (e *Engine) CanSendMore(ctx context.Context) (Decision, error) {
	settings, err := e.Store.GetSettings(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("quota: %w", err)
	}
	daily, err := e.Store.GetDailyStats(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("quota: %w", err)
	}
	weekly, err := e.Store.GetWeeklyStats(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("quota: %w", err)
	}

	d := Decision{
		DailySent:   daily.Sent,
		DailyLimit:  EffectiveDailyLimit(settings),
		WeeklySent:  weekly.Sent,
		WeeklyLimit: settings.WeeklyLimit,
	}

	if daily.Sent >= d.DailyLimit {
		d.Reason = ReasonDailyLimit
		return d, nil
	}
	if weekly.Sent >= settings.WeeklyLimit {
		d.Reason = ReasonWeeklyLimit
		return d, nil
	}
	if settings.BusinessHoursOnly {
		hour := e.now().Hour()
		if hour < settings.BusinessHoursStart || hour >= settings.BusinessHoursEnd {
			d.Reason = ReasonBusinessHours
			return d, nil
		}
	}

	d.Allowed = true
	return d, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
