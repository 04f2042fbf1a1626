package autopilot

import (
	"testing"
	"time"

	"github.com/hazyhaar/linkreach/processor"
	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/store"
)

func started() Event {
	return EvStarted{
		SearchURL:  "https://example.com/search?keywords=go",
		Template:   store.Template{ID: "tpl_1", Body: "Hi {{firstName}}"},
		DryRun:     false,
		CampaignID: "c1",
		At:         time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}
}

func hasEffect[T Effect](fx []Effect) bool {
	for _, f := range fx {
		if _, ok := f.(T); ok {
			return true
		}
	}
	return false
}

func logTypes(fx []Effect) []string {
	var out []string
	for _, f := range fx {
		if l, ok := f.(FxLog); ok {
			out = append(out, l.Type)
		}
	}
	return out
}

func TestStartTransition(t *testing.T) {
	run, fx := Transition(Run{Phase: PhaseIdle}, started())

	if run.Phase != PhaseRunning || run.Page != 1 {
		t.Fatalf("run after start: %+v", run)
	}
	if !hasEffect[FxBeginPage](fx) {
		t.Fatalf("start must dispatch page one: %+v", fx)
	}
	if got := logTypes(fx); len(got) != 1 || got[0] != store.ActivityStarted {
		t.Fatalf("logs: %v", got)
	}

	// A second start while running changes nothing.
	again, fx2 := Transition(run, started())
	if again != run || fx2 != nil {
		t.Fatalf("second start: %+v %+v", again, fx2)
	}
}

func TestPageCompleteAdvancesWhenQuotaAllows(t *testing.T) {
	run, _ := Transition(Run{Phase: PhaseIdle}, started())

	run, fx := Transition(run, EvPageComplete{
		Outcome: processor.PageComplete{Processed: 10, Sent: 3, Skipped: 7},
		Quota:   quota.Decision{Allowed: true},
	})
	if run.Phase != PhaseRunning || run.Page != 2 {
		t.Fatalf("run: %+v", run)
	}
	if !hasEffect[FxNextPage](fx) {
		t.Fatalf("expected next-page effect: %+v", fx)
	}

	// Page N+1 processing starts only after navigation confirms.
	run, fx = Transition(run, EvNextPageResult{OK: true})
	if run.Phase != PhaseRunning || !hasEffect[FxBeginPage](fx) {
		t.Fatalf("run %+v fx %+v", run, fx)
	}
}

func TestPageCompleteQuotaDeniedEndsRun(t *testing.T) {
	run, _ := Transition(Run{Phase: PhaseIdle}, started())

	run, fx := Transition(run, EvPageComplete{
		Outcome: processor.PageComplete{Processed: 5, Sent: 5},
		Quota:   quota.Decision{Reason: quota.ReasonDailyLimit},
	})
	if run.Phase != PhaseIdle || run.StopReason != quota.ReasonDailyLimit {
		t.Fatalf("run: %+v", run)
	}
	if hasEffect[FxBeginPage](fx) || hasEffect[FxNextPage](fx) {
		t.Fatalf("denied run must not continue: %+v", fx)
	}
	found := false
	for _, typ := range logTypes(fx) {
		if typ == store.ActivityPaused {
			found = true
		}
	}
	if !found {
		t.Fatalf("quota stop logs as paused: %v", logTypes(fx))
	}
}

func TestNoResultsEndsRun(t *testing.T) {
	run, _ := Transition(Run{Phase: PhaseIdle}, started())
	run, _ = Transition(run, EvPageComplete{
		Outcome: processor.PageComplete{NoResults: true},
		Quota:   quota.Decision{Allowed: true},
	})
	if run.Phase != PhaseIdle || run.StopReason != ReasonNoMoreResults {
		t.Fatalf("run: %+v", run)
	}
}

func TestNoMorePagesEndsRun(t *testing.T) {
	run, _ := Transition(Run{Phase: PhaseIdle}, started())
	run, _ = Transition(run, EvPageComplete{
		Outcome: processor.PageComplete{Processed: 10, Sent: 2},
		Quota:   quota.Decision{Allowed: true},
	})
	run, fx := Transition(run, EvNextPageResult{OK: false})
	if run.Phase != PhaseIdle || run.StopReason != ReasonNoMorePages {
		t.Fatalf("run: %+v", run)
	}
	if hasEffect[FxBeginPage](fx) {
		t.Fatalf("no further page may be dispatched: %+v", fx)
	}
}

func TestWarningPausesUntilExplicitStop(t *testing.T) {
	run, _ := Transition(Run{Phase: PhaseIdle}, started())
	run, fx := Transition(run, EvWarning{Type: "captcha", Message: "verify"})

	if run.Phase != PhasePaused || run.LastWarning != "captcha" {
		t.Fatalf("run: %+v", run)
	}
	if !hasEffect[FxHaltProcessor](fx) {
		t.Fatalf("warning must halt the processor: %+v", fx)
	}

	// No auto-resume: page events while paused are ignored.
	same, fx2 := Transition(run, EvPageComplete{Quota: quota.Decision{Allowed: true}})
	if same.Phase != PhasePaused || fx2 != nil {
		t.Fatalf("paused run reacted: %+v %+v", same, fx2)
	}

	// Only an explicit stop leaves Paused.
	run, _ = Transition(run, EvStop{})
	if run.Phase != PhaseIdle || run.StopReason != ReasonStopped {
		t.Fatalf("run after stop: %+v", run)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	run, fx := Transition(Run{Phase: PhaseIdle}, EvStop{})
	if run.Phase != PhaseIdle || fx != nil {
		t.Fatalf("stop while idle: %+v %+v", run, fx)
	}
}

func TestLimitReachedEndsRun(t *testing.T) {
	run, _ := Transition(Run{Phase: PhaseIdle}, started())
	run, fx := Transition(run, EvLimitReached{
		Decision: quota.Decision{Reason: quota.ReasonWeeklyLimit},
	})
	if run.Phase != PhaseIdle || run.StopReason != quota.ReasonWeeklyLimit {
		t.Fatalf("run: %+v", run)
	}
	found := false
	for _, typ := range logTypes(fx) {
		if typ == store.ActivityLimitHit {
			found = true
		}
	}
	if !found {
		t.Fatalf("limit stop must log limit_reached: %v", logTypes(fx))
	}
}

func TestActionCompleteKeepsRunning(t *testing.T) {
	run, _ := Transition(Run{Phase: PhaseIdle}, started())
	run, fx := Transition(run, EvActionComplete{Action: processor.ActionComplete{
		Status: processor.StatusSent,
	}})
	if run.Phase != PhaseRunning {
		t.Fatalf("run: %+v", run)
	}
	if !hasEffect[FxSyncAction](fx) {
		t.Fatalf("outcome must mirror to dashboard: %+v", fx)
	}
}
