package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/linkreach/store"
	"github.com/hazyhaar/linkreach/store/storetest"
)

func TestSettingsRoundTrip(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()

	// Fresh store returns defaults.
	s, err := st.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.DailyLimit != 25 || s.WeeklyLimit != 100 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.CooldownMin != 30*time.Second || s.CooldownMax != 90*time.Second {
		t.Fatalf("unexpected cooldown defaults: %v/%v", s.CooldownMin, s.CooldownMax)
	}

	s.DailyLimit = 10
	s.WarmupEnabled = false
	if err := st.SaveSettings(ctx, s); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.DailyLimit != 10 || got.WarmupEnabled {
		t.Fatalf("settings not persisted: %+v", got)
	}
}

func TestDailyRollover(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	st.Now = func() time.Time { return day1 }

	for i := 0; i < 3; i++ {
		if err := st.IncrementDaily(ctx, "sent"); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.IncrementDaily(ctx, "errors"); err != nil {
		t.Fatal(err)
	}

	daily, err := st.GetDailyStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if daily.Sent != 3 || daily.Errors != 1 {
		t.Fatalf("got %+v", daily)
	}

	// Next day: counters read back zeroed regardless of idle time.
	st.Now = func() time.Time { return day1.AddDate(0, 0, 1) }
	daily, err = st.GetDailyStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if daily.Sent != 0 || daily.Skipped != 0 || daily.Errors != 0 {
		t.Fatalf("expected fresh counters, got %+v", daily)
	}
}

func TestWeeklyRollover(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()

	// A Friday.
	friday := time.Date(2026, 3, 13, 12, 0, 0, 0, time.Local)
	st.Now = func() time.Time { return friday }

	if err := st.IncrementWeekly(ctx); err != nil {
		t.Fatal(err)
	}

	weekly, err := st.GetWeeklyStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if weekly.Sent != 1 {
		t.Fatalf("got %+v", weekly)
	}
	if weekly.WeekStart != "2026-03-09" { // the preceding Monday
		t.Fatalf("week start = %q", weekly.WeekStart)
	}

	// Sunday is still the same week.
	st.Now = func() time.Time { return friday.AddDate(0, 0, 2) }
	weekly, _ = st.GetWeeklyStats(ctx)
	if weekly.Sent != 1 {
		t.Fatalf("sunday should see same week, got %+v", weekly)
	}

	// Monday starts a fresh week.
	st.Now = func() time.Time { return friday.AddDate(0, 0, 3) }
	weekly, _ = st.GetWeeklyStats(ctx)
	if weekly.Sent != 0 || weekly.WeekStart != "2026-03-16" {
		t.Fatalf("expected fresh week, got %+v", weekly)
	}
}

func TestIncrementDailyRejectsUnknownField(t *testing.T) {
	st := storetest.Open(t)
	if err := st.IncrementDaily(context.Background(), "sent; DROP TABLE contacts"); err == nil {
		t.Fatal("expected error for non-whitelisted field")
	}
}

func TestContactLedger(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()

	key := "https://www.linkedin.com/in/jane-doe"

	processed, err := st.IsProcessed(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if processed {
		t.Fatal("fresh ledger should not report processed")
	}

	err = st.RecordContact(ctx, store.Contact{
		ProfileKey:  key,
		Name:        "Jane Doe",
		MessageSent: "Hi Jane",
		Status:      store.StatusSent,
	})
	if err != nil {
		t.Fatal(err)
	}

	processed, _ = st.IsProcessed(ctx, key)
	if !processed {
		t.Fatal("sent status must dedup")
	}

	// Error rows never dedup: the processor may retry those profiles.
	errKey := "https://www.linkedin.com/in/flaky"
	if err := st.RecordContact(ctx, store.Contact{ProfileKey: errKey, Status: store.StatusError}); err != nil {
		t.Fatal(err)
	}
	processed, _ = st.IsProcessed(ctx, errKey)
	if processed {
		t.Fatal("error status must not dedup")
	}

	// One row per identity: re-recording replaces, not duplicates.
	if err := st.RecordContact(ctx, store.Contact{ProfileKey: key, Status: store.StatusSkipped}); err != nil {
		t.Fatal(err)
	}
	contacts, err := st.Contacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, c := range contacts {
		if c.ProfileKey == key {
			n++
			if c.Status != store.StatusSkipped {
				t.Fatalf("status = %q, want skipped", c.Status)
			}
		}
	}
	if n != 1 {
		t.Fatalf("got %d rows for one identity", n)
	}
}

func TestActivityLogCapped(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()

	for i := 0; i < 520; i++ {
		if err := st.AppendActivity(ctx, store.ActivityAction, map[string]int{"i": i}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := st.RecentActivity(ctx, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 500 {
		t.Fatalf("got %d entries, want 500", len(entries))
	}
	// Newest first; the oldest 20 were evicted.
	if entries[0].Seq <= entries[len(entries)-1].Seq {
		t.Fatal("entries not newest-first")
	}
}

func TestTemplateSeedAndLookup(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()

	tpls, err := st.Templates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tpls) != 1 {
		t.Fatalf("expected seeded default template, got %d", len(tpls))
	}

	got, err := st.TemplateByID(ctx, tpls[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body == "" {
		t.Fatal("empty template body")
	}

	if _, err := st.TemplateByID(ctx, "tpl_missing"); err != store.ErrTemplateNotFound {
		t.Fatalf("got %v, want ErrTemplateNotFound", err)
	}
}
