package autopilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/linkreach/dashsync"
	"github.com/hazyhaar/linkreach/processor"
	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/store"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("autopilot: run already in progress")

// DeniedError is a synchronous start failure with a stable reason string:
// template_not_found, browser_attach_failed, or a quota denial reason. The
// run never leaves Idle.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "autopilot: start denied: " + e.Reason
}

// Proc is the page-processor surface the runtime drives.
type Proc interface {
	Begin(ctx context.Context, job processor.Job) error
	Stop()
	NextPage(ctx context.Context)
}

// Syncer mirrors run data to the dashboard. Satisfied by *dashsync.Client.
type Syncer interface {
	Sync(ctx context.Context, endpoint string, payload any)
	Sweep(ctx context.Context)
}

// Config wires a Runtime. Store, Quota, Processor and Attach are required;
// Sync is optional.
type Config struct {
	Store     *store.Store
	Quota     *quota.Engine
	Processor Proc

	// Attach establishes (or re-establishes) the search tab before page
	// one. Must be idempotent: a healthy attachment is left alone.
	Attach func(ctx context.Context, searchURL string) error

	Sync   Syncer
	Logger *slog.Logger

	// WarmupInterval is how often the warmup advance is re-checked.
	// The advance itself is idempotent per calendar day. Default: 1h.
	WarmupInterval time.Duration
	// SweepInterval is the sync retry cadence. Default: 1m.
	SweepInterval time.Duration
}

// Runtime owns the run state. Every mutation happens on the mailbox
// goroutine inside Run, so control commands, processor events and timer
// ticks can never interleave.
type Runtime struct {
	cfg     Config
	mailbox chan func()
	done    chan struct{}

	mu  sync.Mutex
	run Run

	ctx context.Context
}

// NewRuntime creates a Runtime. Panics on missing collaborators, which is a
// wiring bug.
func NewRuntime(cfg Config) *Runtime {
	if cfg.Store == nil || cfg.Quota == nil || cfg.Processor == nil || cfg.Attach == nil {
		panic("autopilot: incomplete config")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WarmupInterval <= 0 {
		cfg.WarmupInterval = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Runtime{
		cfg:     cfg,
		mailbox: make(chan func(), 128),
		done:    make(chan struct{}),
		run:     Run{Phase: PhaseIdle},
	}
}

// Run is the mailbox loop. It executes queued handlers one at a time and
// funnels the background timers through the same serialization point, then
// stops the processor and exits when ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	r.ctx = ctx
	defer close(r.done)

	warmup := time.NewTicker(r.cfg.WarmupInterval)
	defer warmup.Stop()
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()

	// Catch up the warmup schedule at startup: the daemon may have been
	// down across a day boundary.
	r.advanceWarmup(ctx)

	for {
		select {
		case <-ctx.Done():
			r.cfg.Processor.Stop()
			return ctx.Err()
		case f := <-r.mailbox:
			f()
		case <-warmup.C:
			r.advanceWarmup(ctx)
		case <-sweep.C:
			if r.cfg.Sync != nil {
				r.cfg.Sync.Sweep(ctx)
			}
		}
	}
}

// StartRequest are the parameters of one run.
type StartRequest struct {
	SearchURL  string
	TemplateID string // empty = first available template
	CampaignID string // empty = no campaign checkpoints
}

// Start runs the preflight (template, quota, attach) on the mailbox
// goroutine and, on success, transitions to Running and dispatches page one.
func (r *Runtime) Start(ctx context.Context, req StartRequest) error {
	reply := make(chan error, 1)
	r.post(func() { reply <- r.handleStart(req) })
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return errors.New("autopilot: runtime stopped")
	}
}

// Stop ends the current run, idempotently.
func (r *Runtime) Stop(ctx context.Context) error {
	reply := make(chan struct{})
	r.post(func() {
		r.dispatch(EvStop{})
		close(reply)
	})
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return nil
	}
}

// Snapshot returns a copy of the current run state.
func (r *Runtime) Snapshot() Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run
}

// HandleProcessorEvent is the processor's Emit callback. It hops onto the
// mailbox goroutine; quota facts for page completion are gathered there,
// never concurrently with another handler.
func (r *Runtime) HandleProcessorEvent(ev processor.Event) {
	r.post(func() { r.onProcessorEvent(ev) })
}

func (r *Runtime) post(f func()) {
	select {
	case r.mailbox <- f:
	case <-r.done:
	}
}

func (r *Runtime) handleStart(req StartRequest) error {
	ctx := r.ctx
	log := r.cfg.Logger

	if r.Snapshot().Phase != PhaseIdle {
		return ErrAlreadyRunning
	}
	if req.SearchURL == "" {
		return &DeniedError{Reason: "missing_search_url"}
	}

	tpl, err := r.resolveTemplate(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			return &DeniedError{Reason: "template_not_found"}
		}
		return fmt.Errorf("autopilot: resolve template: %w", err)
	}

	dec, err := r.cfg.Quota.CanSendMore(ctx)
	if err != nil {
		return fmt.Errorf("autopilot: preflight quota check: %w", err)
	}
	if !dec.Allowed {
		return &DeniedError{Reason: dec.Reason}
	}

	settings, err := r.cfg.Store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("autopilot: read settings: %w", err)
	}

	if err := r.cfg.Attach(ctx, req.SearchURL); err != nil {
		log.Error("autopilot: page attach failed", "url", req.SearchURL, "error", err)
		return &DeniedError{Reason: "browser_attach_failed"}
	}

	log.Info("autopilot: run starting",
		"url", req.SearchURL, "template", tpl.ID, "dryRun", settings.DryRun)
	r.dispatch(EvStarted{
		SearchURL:  req.SearchURL,
		Template:   tpl,
		DryRun:     settings.DryRun,
		CampaignID: req.CampaignID,
		At:         r.cfg.Store.Now(),
	})
	return nil
}

func (r *Runtime) resolveTemplate(ctx context.Context, id string) (store.Template, error) {
	if id != "" {
		return r.cfg.Store.TemplateByID(ctx, id)
	}
	tpls, err := r.cfg.Store.Templates(ctx)
	if err != nil {
		return store.Template{}, err
	}
	if len(tpls) == 0 {
		return store.Template{}, store.ErrTemplateNotFound
	}
	return tpls[0], nil
}

func (r *Runtime) onProcessorEvent(ev processor.Event) {
	switch e := ev.(type) {
	case processor.ActionComplete:
		r.dispatch(EvActionComplete{Action: e})
	case processor.PageComplete:
		dec, err := r.cfg.Quota.CanSendMore(r.ctx)
		if err != nil {
			r.cfg.Logger.Error("autopilot: quota check failed", "error", err)
			dec = quota.Decision{Reason: "quota_check_failed"}
		}
		r.dispatch(EvPageComplete{Outcome: e, Quota: dec})
	case processor.WarningDetected:
		r.dispatch(EvWarning{Type: e.Type, Message: e.Message})
	case processor.LimitReached:
		r.dispatch(EvLimitReached{Decision: e.Decision})
	case processor.NextPageResult:
		r.dispatch(EvNextPageResult{OK: e.OK})
	}
}

func (r *Runtime) dispatch(ev Event) {
	next, effects := Transition(r.Snapshot(), ev)
	r.mu.Lock()
	r.run = next
	r.mu.Unlock()
	for _, fx := range effects {
		r.apply(fx)
	}
}

func (r *Runtime) apply(fx Effect) {
	ctx := r.ctx
	log := r.cfg.Logger

	switch f := fx.(type) {
	case FxBeginPage:
		run := r.Snapshot()
		job := processor.Job{Template: run.Template, DryRun: run.DryRun}
		if err := r.cfg.Processor.Begin(ctx, job); err != nil {
			log.Error("autopilot: begin page failed", "page", run.Page, "error", err)
			// A rejected dispatch would otherwise leave the run wedged in
			// Running with no processor events coming. End it instead.
			// FxBeginPage is always the final effect of its transition, so
			// the nested dispatch cannot reorder remaining effects.
			r.dispatch(EvStop{})
		}

	case FxNextPage:
		r.cfg.Processor.NextPage(ctx)

	case FxHaltProcessor:
		r.cfg.Processor.Stop()

	case FxLog:
		if err := r.cfg.Store.AppendActivity(ctx, f.Type, f.Payload); err != nil {
			log.Error("autopilot: activity write failed", "type", f.Type, "error", err)
		}
		if r.cfg.Sync != nil {
			r.cfg.Sync.Sync(ctx, dashsync.EndpointActivity, map[string]any{
				"type":    f.Type,
				"payload": f.Payload,
			})
		}

	case FxSyncAction:
		if r.cfg.Sync == nil {
			return
		}
		a := f.Action
		payload := map[string]any{
			"contactName": a.Contact.Name,
			"headline":    a.Contact.Headline,
			"company":     a.Contact.Company,
			"profileUrl":  a.Contact.ProfileURL,
			"status":      dashsync.OutcomeStatus(a.Status),
		}
		if f.CampaignID != "" {
			payload["campaignId"] = f.CampaignID
		}
		if a.Message != "" {
			payload["message"] = a.Message
		}
		if a.Reason != "" {
			payload["reason"] = a.Reason
		}
		if a.Error != "" {
			payload["error"] = a.Error
		}
		r.cfg.Sync.Sync(ctx, dashsync.EndpointActions, payload)

	case FxSyncStatus:
		if r.cfg.Sync == nil || f.CampaignID == "" {
			return
		}
		r.cfg.Sync.Sync(ctx, dashsync.EndpointCampaignStatus(f.CampaignID), map[string]any{
			"status":      f.Status,
			"currentPage": f.Page,
		})
	}
}

func (r *Runtime) advanceWarmup(ctx context.Context) {
	if err := r.cfg.Quota.AdvanceWarmup(ctx); err != nil {
		r.cfg.Logger.Error("autopilot: warmup advance failed", "error", err)
	}
}
