package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/linkreach/pace"
	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/scrape"
	"github.com/hazyhaar/linkreach/store"
)

// ErrBusy is returned by Begin while a page run is already in progress.
var ErrBusy = errors.New("processor: page run already in progress")

// Gate decides whether one more send is allowed. Satisfied by *quota.Engine.
type Gate interface {
	CanSendMore(ctx context.Context) (quota.Decision, error)
}

// Ledger is the slice of the store the processor writes through. Satisfied
// by *store.Store.
type Ledger interface {
	GetSettings(ctx context.Context) (store.Settings, error)
	IsProcessed(ctx context.Context, profileKey string) (bool, error)
	RecordContact(ctx context.Context, c store.Contact) error
	IncrementDaily(ctx context.Context, field string) error
	IncrementWeekly(ctx context.Context) error
	IncrementTemplateSent(ctx context.Context, id string) error
}

// Config wires a Processor. Surface, Gate, Store and Emit are required.
type Config struct {
	Surface Surface
	Gate    Gate
	Store   Ledger

	// Emit receives events as they occur. Called from the run goroutine.
	Emit func(Event)

	Logger *slog.Logger

	// Sleep paces the loop. Defaults to a humanised random sleep between
	// min and max; tests replace it with a no-op.
	Sleep func(ctx context.Context, min, max time.Duration) error
}

// Job is the work order for one page run.
type Job struct {
	Template store.Template
	DryRun   bool
}

// Processor runs one results page at a time. Begin is asynchronous; progress
// arrives through Config.Emit.
type Processor struct {
	cfg Config

	mu      sync.Mutex
	running bool
	halt    context.CancelFunc
	done    chan struct{}
}

// New creates a Processor. Panics if a required collaborator is missing,
// which is a wiring bug, not a runtime condition.
func New(cfg Config) *Processor {
	if cfg.Surface == nil || cfg.Gate == nil || cfg.Store == nil || cfg.Emit == nil {
		panic("processor: incomplete config")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = func(ctx context.Context, min, max time.Duration) error {
			return pace.Sleep(ctx, pace.Between(min, max))
		}
	}
	return &Processor{cfg: cfg}
}

// Begin starts processing the current page. It returns immediately; the run
// proceeds on its own goroutine and reports through Emit. ctx bounds the
// whole run (daemon shutdown), not the stop request.
func (p *Processor) Begin(ctx context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrBusy
	}
	waitCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.halt = cancel
	p.done = make(chan struct{})
	go p.run(ctx, waitCtx, job)
	return nil
}

// Stop requests a cooperative halt. The in-flight interaction step finishes;
// polling waits and pauses abort within one interval. No-op when idle.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running && p.halt != nil {
		p.halt()
	}
}

// Wait blocks until the current page run has finished. Used by shutdown and
// tests; returns immediately when idle.
func (p *Processor) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// NextPage navigates to the next results page asynchronously and reports the
// outcome as a NextPageResult event.
func (p *Processor) NextPage(ctx context.Context) {
	go func() {
		ok, err := p.cfg.Surface.NextPage(ctx)
		if err != nil {
			p.cfg.Logger.Warn("processor: next page failed", "error", err)
			ok = false
		}
		p.cfg.Emit(NextPageResult{OK: ok})
	}()
}

func (p *Processor) run(ctx, waitCtx context.Context, job Job) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.halt = nil
		close(p.done)
		p.mu.Unlock()
	}()

	log := p.cfg.Logger
	surf := p.cfg.Surface

	ready, err := surf.WaitReady(waitCtx)
	if err != nil || !ready {
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("processor: page never became ready", "error", err)
		}
		p.cfg.Emit(PageComplete{NoResults: true})
		return
	}

	cands, err := surf.Candidates(ctx)
	if err != nil {
		log.Error("processor: scrape failed", "error", err)
		p.cfg.Emit(PageComplete{NoResults: true})
		return
	}
	if len(cands) == 0 {
		p.cfg.Emit(PageComplete{NoResults: true})
		return
	}
	log.Info("processor: page scraped", "candidates", len(cands))

	var processed, sent, skipped int
	for _, c := range cands {
		if waitCtx.Err() != nil {
			break
		}

		// Safety indicators halt the page before anything else.
		if w, werr := surf.Warning(ctx); werr == nil && w != nil {
			log.Warn("processor: platform warning", "type", w.Type, "message", w.Message)
			p.cfg.Emit(WarningDetected{Type: w.Type, Message: w.Message})
			return
		}

		// Gate before the skip scan, once per candidate: exhausted quota
		// halts the page immediately rather than walking the remaining
		// skippable cards, and limit edits mid-run apply on the next card.
		dec, err := p.cfg.Gate.CanSendMore(ctx)
		if err != nil {
			log.Error("processor: quota check failed", "error", err)
			break
		}
		if !dec.Allowed {
			log.Info("processor: limit reached", "reason", dec.Reason,
				"daily", dec.DailySent, "weekly", dec.WeeklySent)
			p.cfg.Emit(LimitReached{Decision: dec})
			break
		}

		processed++

		reason, err := p.skipReason(ctx, c)
		if err != nil {
			log.Error("processor: ledger lookup failed", "profile", c.Name, "error", err)
			p.recordError(ctx, c, err)
			continue
		}
		if reason != "" {
			skipped++
			if err := p.cfg.Store.IncrementDaily(ctx, "skipped"); err != nil {
				log.Warn("processor: counter update failed", "error", err)
			}
			p.cfg.Emit(ActionComplete{Contact: c, Status: StatusSkipped, Reason: reason})
			// Brief jitter so skipping is not machine-regular.
			if p.pause(waitCtx, 500*time.Millisecond, 1500*time.Millisecond) != nil {
				break
			}
			continue
		}

		msg := Render(job.Template.Body, c)
		err = p.sendSequence(ctx, waitCtx, c.Index, msg, job.DryRun)
		if err != nil {
			if waitCtx.Err() != nil && errors.Is(err, context.Canceled) {
				break // stop requested mid-sequence, not a failure
			}
			log.Warn("processor: send failed", "profile", c.Name, "error", err)
			p.recordError(ctx, c, err)
		} else {
			sent++
			p.recordSent(ctx, c, msg, job)
		}

		// Cooldown between attempts, re-read each time so edits apply.
		settings, serr := p.cfg.Store.GetSettings(ctx)
		if serr != nil {
			log.Warn("processor: settings read failed", "error", serr)
			settings = store.DefaultSettings()
		}
		if p.pause(waitCtx, settings.CooldownMin, settings.CooldownMax) != nil {
			break
		}
	}

	p.cfg.Emit(PageComplete{Processed: processed, Sent: sent, Skipped: skipped})
}

// recordSent does the post-send bookkeeping: ledger row, counters, template
// stats, outcome event. Dry-run sends count toward quota like real ones and
// land in the ledger as pending so reruns do not re-rehearse the profile.
func (p *Processor) recordSent(ctx context.Context, c scrape.Candidate, msg string, job Job) {
	status, ledgerStatus := StatusSent, store.StatusSent
	if job.DryRun {
		status, ledgerStatus = StatusDryRun, store.StatusPending
	}
	log := p.cfg.Logger
	if key, kerr := scrape.IdentityKey(c); kerr != nil {
		log.Error("processor: no ledger key for contact", "profile", c.Name, "error", kerr)
	} else {
		contact := store.Contact{
			ProfileKey:  key,
			Name:        c.Name,
			Headline:    c.Headline,
			Company:     c.Company,
			MessageSent: msg,
			Status:      ledgerStatus,
		}
		if err := p.cfg.Store.RecordContact(ctx, contact); err != nil {
			log.Error("processor: ledger write failed", "profile", c.Name, "error", err)
		}
	}
	if err := p.cfg.Store.IncrementDaily(ctx, "sent"); err != nil {
		log.Warn("processor: counter update failed", "error", err)
	}
	if err := p.cfg.Store.IncrementWeekly(ctx); err != nil {
		log.Warn("processor: counter update failed", "error", err)
	}
	if job.Template.ID != "" {
		if err := p.cfg.Store.IncrementTemplateSent(ctx, job.Template.ID); err != nil {
			log.Warn("processor: template stats update failed", "error", err)
		}
	}
	log.Info("processor: invite processed", "profile", c.Name, "status", status)
	p.cfg.Emit(ActionComplete{Contact: c, Status: status, Message: msg})
}

// recordError counts the failure but leaves the ledger alone, so the profile
// stays eligible for a retry on a later page visit.
func (p *Processor) recordError(ctx context.Context, c scrape.Candidate, cause error) {
	if err := p.cfg.Store.IncrementDaily(ctx, "errors"); err != nil {
		p.cfg.Logger.Warn("processor: counter update failed", "error", err)
	}
	p.cfg.Emit(ActionComplete{Contact: c, Status: StatusError, Error: cause.Error()})
}

func (p *Processor) pause(ctx context.Context, min, max time.Duration) error {
	return p.cfg.Sleep(ctx, min, max)
}
