// Package autopilot is the orchestrator: a state machine owning the run
// state, driven by a single mailbox goroutine that serializes every control
// command, processor event and background tick.
//
// The machine itself is pure. Transition never touches the store, the
// browser or the network; it maps (run, event) to (run', effects) and the
// runtime executes the effects. Anything the machine needs to know from the
// outside world (the quota verdict after a page) is gathered by the runtime
// and carried inside the event.
package autopilot

import (
	"time"

	"github.com/hazyhaar/linkreach/processor"
	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/store"
)

// Phase is the run lifecycle state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	// PhasePaused is entered only on a platform warning and left only by
	// an explicit stop. There is no auto-resume.
	PhasePaused Phase = "paused"
)

// Terminal reasons recorded when a run returns to Idle.
const (
	ReasonNoMoreResults = "no_more_results"
	ReasonNoMorePages   = "no_more_pages"
	ReasonStopped       = "stopped"
)

// Run is the state of one automation session. The search URL, template and
// dry-run flag are fixed for the run's lifetime; the page index only grows.
type Run struct {
	Phase Phase `json:"phase"`

	SearchURL  string         `json:"searchUrl,omitempty"`
	Template   store.Template `json:"-"`
	Page       int            `json:"currentPage"`
	DryRun     bool           `json:"dryRun"`
	CampaignID string         `json:"campaignId,omitempty"`
	StartedAt  time.Time      `json:"startedAt,omitzero"`

	LastWarning string `json:"lastWarning,omitempty"`
	StopReason  string `json:"stopReason,omitempty"`
}

// Event is one input to the state machine.
type Event interface{ autopilotEvent() }

// EvStarted fires after a successful preflight (template resolved, quota
// allows, page attached). The machine only records the run and kicks off
// page one.
type EvStarted struct {
	SearchURL  string
	Template   store.Template
	DryRun     bool
	CampaignID string
	At         time.Time
}

// EvStop is the explicit stop command. Valid in every phase, idempotent.
type EvStop struct{}

// EvPageComplete carries the processor's page outcome plus the quota verdict
// the runtime gathered right before dispatch.
type EvPageComplete struct {
	Outcome processor.PageComplete
	Quota   quota.Decision
}

// EvNextPageResult reports whether navigation to the next page succeeded.
type EvNextPageResult struct {
	OK bool
}

// EvActionComplete mirrors one candidate outcome.
type EvActionComplete struct {
	Action processor.ActionComplete
}

// EvWarning reports a platform safety indicator.
type EvWarning struct {
	Type    string
	Message string
}

// EvLimitReached reports a mid-page quota denial.
type EvLimitReached struct {
	Decision quota.Decision
}

func (EvStarted) autopilotEvent()        {}
func (EvStop) autopilotEvent()           {}
func (EvPageComplete) autopilotEvent()   {}
func (EvNextPageResult) autopilotEvent() {}
func (EvActionComplete) autopilotEvent() {}
func (EvWarning) autopilotEvent()        {}
func (EvLimitReached) autopilotEvent()   {}

// Effect is an instruction the runtime executes after a transition.
type Effect interface{ autopilotEffect() }

// FxBeginPage starts processing the current page.
type FxBeginPage struct{}

// FxNextPage navigates toward the next results page.
type FxNextPage struct{}

// FxHaltProcessor raises the processor's cooperative stop flag.
type FxHaltProcessor struct{}

// FxLog appends a typed activity entry (and mirrors it to the dashboard).
type FxLog struct {
	Type    string
	Payload map[string]any
}

// FxSyncAction mirrors one candidate outcome to the dashboard.
type FxSyncAction struct {
	Action     processor.ActionComplete
	CampaignID string
}

// FxSyncStatus checkpoints the campaign status and page index.
type FxSyncStatus struct {
	CampaignID string
	Status     string
	Page       int
}

func (FxBeginPage) autopilotEffect()     {}
func (FxNextPage) autopilotEffect()      {}
func (FxHaltProcessor) autopilotEffect() {}
func (FxLog) autopilotEffect()           {}
func (FxSyncAction) autopilotEffect()    {}
func (FxSyncStatus) autopilotEffect()    {}

// Transition is the pure dispatch function. Events that make no sense in the
// current phase (a late PageComplete after a stop, a second start) change
// nothing and produce no effects.
func Transition(run Run, ev Event) (Run, []Effect) {
	switch e := ev.(type) {
	case EvStarted:
		if run.Phase != PhaseIdle {
			return run, nil
		}
		next := Run{
			Phase:      PhaseRunning,
			SearchURL:  e.SearchURL,
			Template:   e.Template,
			Page:       1,
			DryRun:     e.DryRun,
			CampaignID: e.CampaignID,
			StartedAt:  e.At,
		}
		return next, []Effect{
			FxLog{Type: store.ActivityStarted, Payload: map[string]any{
				"searchUrl":  e.SearchURL,
				"templateId": e.Template.ID,
				"dryRun":     e.DryRun,
			}},
			FxSyncStatus{CampaignID: e.CampaignID, Status: "active", Page: 1},
			FxBeginPage{},
		}

	case EvStop:
		if run.Phase == PhaseIdle {
			return run, nil
		}
		fx := []Effect{
			FxHaltProcessor{},
			FxLog{Type: store.ActivityStopped, Payload: map[string]any{
				"reason": ReasonStopped,
			}},
			FxSyncStatus{CampaignID: run.CampaignID, Status: "stopped", Page: run.Page},
		}
		return idle(run, ReasonStopped), fx

	case EvActionComplete:
		if run.Phase != PhaseRunning {
			return run, nil
		}
		return run, []Effect{
			FxLog{Type: store.ActivityAction, Payload: actionPayload(e.Action)},
			FxSyncAction{Action: e.Action, CampaignID: run.CampaignID},
		}

	case EvPageComplete:
		if run.Phase != PhaseRunning {
			return run, nil
		}
		fx := []Effect{
			FxLog{Type: store.ActivityPageDone, Payload: map[string]any{
				"page":      run.Page,
				"processed": e.Outcome.Processed,
				"sent":      e.Outcome.Sent,
				"skipped":   e.Outcome.Skipped,
			}},
		}
		if e.Outcome.NoResults {
			fx = append(fx,
				FxLog{Type: store.ActivityComplete, Payload: map[string]any{
					"reason": ReasonNoMoreResults,
				}},
				FxSyncStatus{CampaignID: run.CampaignID, Status: "completed", Page: run.Page},
			)
			return idle(run, ReasonNoMoreResults), fx
		}
		if !e.Quota.Allowed {
			// The log says paused, the machine goes Idle: quota
			// exhaustion ends the run, it does not suspend it.
			fx = append(fx,
				FxLog{Type: store.ActivityPaused, Payload: map[string]any{
					"reason": e.Quota.Reason,
				}},
				FxSyncStatus{CampaignID: run.CampaignID, Status: "paused", Page: run.Page},
			)
			return idle(run, e.Quota.Reason), fx
		}
		run.Page++
		return run, append(fx, FxNextPage{})

	case EvNextPageResult:
		if run.Phase != PhaseRunning {
			return run, nil
		}
		if !e.OK {
			return idle(run, ReasonNoMorePages), []Effect{
				FxLog{Type: store.ActivityComplete, Payload: map[string]any{
					"reason": ReasonNoMorePages,
				}},
				FxSyncStatus{CampaignID: run.CampaignID, Status: "completed", Page: run.Page},
			}
		}
		return run, []Effect{
			FxSyncStatus{CampaignID: run.CampaignID, Status: "active", Page: run.Page},
			FxBeginPage{},
		}

	case EvWarning:
		if run.Phase != PhaseRunning {
			return run, nil
		}
		run.Phase = PhasePaused
		run.LastWarning = e.Type
		return run, []Effect{
			FxHaltProcessor{},
			FxLog{Type: store.ActivityWarning, Payload: map[string]any{
				"warningType": e.Type,
				"message":     e.Message,
			}},
			FxSyncStatus{CampaignID: run.CampaignID, Status: "paused", Page: run.Page},
		}

	case EvLimitReached:
		if run.Phase != PhaseRunning {
			return run, nil
		}
		fx := []Effect{
			FxHaltProcessor{},
			FxLog{Type: store.ActivityLimitHit, Payload: map[string]any{
				"reason":     e.Decision.Reason,
				"dailySent":  e.Decision.DailySent,
				"weeklySent": e.Decision.WeeklySent,
			}},
			FxSyncStatus{CampaignID: run.CampaignID, Status: "paused", Page: run.Page},
		}
		return idle(run, e.Decision.Reason), fx
	}
	return run, nil
}

// idle resets the run, keeping only the terminal reason and last warning for
// the status surface.
func idle(run Run, reason string) Run {
	return Run{
		Phase:       PhaseIdle,
		StopReason:  reason,
		LastWarning: run.LastWarning,
	}
}

func actionPayload(a processor.ActionComplete) map[string]any {
	p := map[string]any{
		"contactName": a.Contact.Name,
		"status":      a.Status,
	}
	if a.Message != "" {
		p["message"] = a.Message
	}
	if a.Reason != "" {
		p["reason"] = a.Reason
	}
	if a.Error != "" {
		p["error"] = a.Error
	}
	return p
}
