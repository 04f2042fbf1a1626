package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/store"
	"github.com/hazyhaar/linkreach/store/storetest"
)

// newEngine returns an engine over an in-memory store with the clock pinned
// inside business hours on a weekday.
func newEngine(t *testing.T) (*quota.Engine, *store.Store) {
	t.Helper()
	st := storetest.Open(t)
	st.Now = func() time.Time {
		return time.Date(2026, 3, 10, 11, 0, 0, 0, time.Local)
	}
	return quota.New(st), st
}

func saveSettings(t *testing.T, st *store.Store, mut func(*store.Settings)) {
	t.Helper()
	s, err := st.GetSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	mut(&s)
	if err := st.SaveSettings(context.Background(), s); err != nil {
		t.Fatal(err)
	}
}

func TestDailyLimitDenied(t *testing.T) {
	eng, st := newEngine(t)
	ctx := context.Background()

	saveSettings(t, st, func(s *store.Settings) {
		s.DailyLimit = 5
		s.WarmupEnabled = false
	})

	for i := 0; i < 5; i++ {
		d, err := eng.CanSendMore(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed {
			t.Fatalf("send %d should be allowed: %+v", i+1, d)
		}
		if err := st.IncrementDaily(ctx, "sent"); err != nil {
			t.Fatal(err)
		}
		if err := st.IncrementWeekly(ctx); err != nil {
			t.Fatal(err)
		}
	}

	// The 6th check is denied; sent never exceeds the limit.
	d, err := eng.CanSendMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatalf("6th send should be denied: %+v", d)
	}
	if d.Reason != quota.ReasonDailyLimit {
		t.Fatalf("reason = %q, want daily_limit", d.Reason)
	}
	if d.DailySent != 5 || d.DailyLimit != 5 {
		t.Fatalf("counters: %+v", d)
	}
}

func TestWarmupCapsDailyLimit(t *testing.T) {
	eng, st := newEngine(t)
	ctx := context.Background()

	saveSettings(t, st, func(s *store.Settings) {
		s.DailyLimit = 25
		s.WarmupEnabled = true
		s.WarmupDay = 2 // effective limit 10
	})

	d, err := eng.CanSendMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.DailyLimit != 10 {
		t.Fatalf("effective limit = %d, want 10", d.DailyLimit)
	}

	for i := 0; i < 10; i++ {
		st.IncrementDaily(ctx, "sent")
	}
	d, _ = eng.CanSendMore(ctx)
	if d.Allowed || d.Reason != quota.ReasonDailyLimit {
		t.Fatalf("warmup cap not enforced: %+v", d)
	}
}

func TestWeeklyLimitDenied(t *testing.T) {
	eng, st := newEngine(t)
	ctx := context.Background()

	saveSettings(t, st, func(s *store.Settings) {
		s.DailyLimit = 1000
		s.WeeklyLimit = 3
		s.WarmupEnabled = false
	})

	for i := 0; i < 3; i++ {
		st.IncrementWeekly(ctx)
	}

	d, err := eng.CanSendMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Reason != quota.ReasonWeeklyLimit {
		t.Fatalf("got %+v", d)
	}
}

func TestBusinessHoursDenied(t *testing.T) {
	eng, st := newEngine(t)
	ctx := context.Background()

	saveSettings(t, st, func(s *store.Settings) {
		s.BusinessHoursOnly = true
		s.BusinessHoursStart = 9
		s.BusinessHoursEnd = 18
	})

	// 20:00 local — outside [9, 18) regardless of remaining quota.
	eng.Now = func() time.Time {
		return time.Date(2026, 3, 10, 20, 0, 0, 0, time.Local)
	}

	d, err := eng.CanSendMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Reason != quota.ReasonBusinessHours {
		t.Fatalf("got %+v", d)
	}

	// End hour itself is exclusive.
	eng.Now = func() time.Time {
		return time.Date(2026, 3, 10, 18, 0, 0, 0, time.Local)
	}
	d, _ = eng.CanSendMore(ctx)
	if d.Allowed {
		t.Fatalf("hour 18 should be outside [9, 18): %+v", d)
	}

	// Start hour is inclusive.
	eng.Now = func() time.Time {
		return time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	}
	d, _ = eng.CanSendMore(ctx)
	if !d.Allowed {
		t.Fatalf("hour 9 should be allowed: %+v", d)
	}
}

func TestGateHasNoSideEffects(t *testing.T) {
	eng, st := newEngine(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := eng.CanSendMore(ctx); err != nil {
			t.Fatal(err)
		}
	}
	daily, _ := st.GetDailyStats(ctx)
	weekly, _ := st.GetWeeklyStats(ctx)
	if daily.Sent != 0 || weekly.Sent != 0 {
		t.Fatalf("gate mutated counters: %+v %+v", daily, weekly)
	}
}
