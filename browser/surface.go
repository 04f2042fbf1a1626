package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/linkreach/pace"
	"github.com/hazyhaar/linkreach/processor"
	"github.com/hazyhaar/linkreach/scrape"
)

const (
	readyTimeout = 15 * time.Second
	pollInterval = 250 * time.Millisecond
)

// Surface implements processor.Surface over the live search tab. Handles are
// *rod.Element values; they stay valid only while the page they came from is
// loaded, which holds because the processor locates and uses each control
// within one sequence step.
type Surface struct {
	sess *Session
	log  *slog.Logger
}

var _ processor.Surface = (*Surface)(nil)

// NewSurface creates the processor-facing view of the session.
func NewSurface(sess *Session, log *slog.Logger) *Surface {
	if log == nil {
		log = slog.Default()
	}
	return &Surface{sess: sess, log: log}
}

func (s *Surface) page(ctx context.Context) (*rod.Page, error) {
	p := s.sess.Page()
	if p == nil {
		return nil, fmt.Errorf("browser: no active search tab")
	}
	return p.Context(ctx), nil
}

// WaitReady polls until result cards appear or the empty-results marker
// shows up. A page that settles on neither within the timeout counts as
// empty.
func (s *Surface) WaitReady(ctx context.Context) (bool, error) {
	deadline := time.Now().Add(readyTimeout)
	for {
		p, err := s.page(ctx)
		if err != nil {
			return false, err
		}
		if has, _, err := p.Has(selResultCard); err == nil && has {
			return true, nil
		}
		if has, _, err := p.Has(selNoResults); err == nil && has {
			return false, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := pace.Sleep(ctx, pollInterval); err != nil {
			return false, err
		}
	}
}

// Warning scans the page for safety indicators, most severe first.
func (s *Surface) Warning(ctx context.Context) (*processor.WarningInfo, error) {
	p, err := s.page(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range warningChecks {
		has, el, err := p.Has(w.Sel)
		if err != nil {
			return nil, fmt.Errorf("browser: warning scan: %w", err)
		}
		if !has {
			continue
		}
		info := &processor.WarningInfo{Type: w.Type}
		if text, err := el.Text(); err == nil {
			info.Message = scrape.CleanText(text)
		}
		return info, nil
	}
	return nil, nil
}

// Candidates lifts each result card's outer HTML off the page and parses it
// into candidates. Card indexes are DOM positions, so non-profile slots
// leave gaps rather than shifting later cards.
func (s *Surface) Candidates(ctx context.Context) ([]scrape.Candidate, error) {
	p, err := s.page(ctx)
	if err != nil {
		return nil, err
	}
	els, err := p.Elements(selResultCard)
	if err != nil {
		return nil, fmt.Errorf("browser: list result cards: %w", err)
	}

	var out []scrape.Candidate
	for i, el := range els {
		cardHTML, err := el.HTML()
		if err != nil {
			s.log.Debug("browser: card html failed", "index", i, "error", err)
			continue
		}
		if c, ok := scrape.ParseCard(i, cardHTML); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// CandidateControl locates a control inside the card at the given DOM index.
func (s *Surface) CandidateControl(ctx context.Context, index int, name processor.Control) (processor.Handle, error) {
	sel, ok := controlSelectors[name]
	if !ok {
		return nil, fmt.Errorf("browser: unknown control %q", name)
	}
	p, err := s.page(ctx)
	if err != nil {
		return nil, err
	}
	els, err := p.Elements(selResultCard)
	if err != nil {
		return nil, fmt.Errorf("browser: list result cards: %w", err)
	}
	if index < 0 || index >= len(els) {
		return nil, nil
	}
	has, el, err := els[index].Has(sel)
	if err != nil {
		return nil, fmt.Errorf("browser: find %s in card %d: %w", name, index, err)
	}
	if !has {
		return nil, nil
	}
	return el, nil
}

// Control locates a page-scoped control without waiting.
func (s *Surface) Control(ctx context.Context, name processor.Control) (processor.Handle, error) {
	sel, ok := controlSelectors[name]
	if !ok {
		return nil, fmt.Errorf("browser: unknown control %q", name)
	}
	p, err := s.page(ctx)
	if err != nil {
		return nil, err
	}
	has, el, err := p.Has(sel)
	if err != nil {
		return nil, fmt.Errorf("browser: find %s: %w", name, err)
	}
	if !has {
		return nil, nil
	}
	return el, nil
}

// WaitControl polls for a page-scoped control up to timeout, re-checking ctx
// every interval.
func (s *Surface) WaitControl(ctx context.Context, name processor.Control, timeout time.Duration) (processor.Handle, error) {
	deadline := time.Now().Add(timeout)
	for {
		h, err := s.Control(ctx, name)
		if err != nil || h != nil {
			return h, err
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		if err := pace.Sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
}

// Click scrolls the control into view, pauses like a hand moving to it,
// then clicks.
func (s *Surface) Click(ctx context.Context, h processor.Handle) error {
	el, err := element(h)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll to control: %w", err)
	}
	if err := pace.Sleep(ctx, pace.Between(100*time.Millisecond, 400*time.Millisecond)); err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}

// Type focuses the field and enters text one keystroke at a time with a
// human typing rhythm.
func (s *Surface) Type(ctx context.Context, h processor.Handle, text string) error {
	el, err := element(h)
	if err != nil {
		return err
	}
	if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: focus field: %w", err)
	}
	p, err := s.page(ctx)
	if err != nil {
		return err
	}
	var prev rune
	for _, r := range text {
		if err := p.InsertText(string(r)); err != nil {
			return fmt.Errorf("browser: type: %w", err)
		}
		if err := pace.Sleep(ctx, pace.Keystroke(50*time.Millisecond, 150*time.Millisecond, prev)); err != nil {
			return err
		}
		prev = r
	}
	return nil
}

// Scroll brings the control into the viewport.
func (s *Surface) Scroll(ctx context.Context, h processor.Handle) error {
	el, err := element(h)
	if err != nil {
		return err
	}
	if err := el.Context(ctx).ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// NextPage clicks the pagination control and waits for the new page to load.
// Returns false when there is no further page.
func (s *Surface) NextPage(ctx context.Context) (bool, error) {
	p, err := s.page(ctx)
	if err != nil {
		return false, err
	}
	has, el, err := p.Has(selNextPage)
	if err != nil {
		return false, fmt.Errorf("browser: find next page: %w", err)
	}
	if !has {
		return false, nil
	}
	if disabled, _ := el.Attribute("disabled"); disabled != nil {
		return false, nil
	}

	if err := s.Click(ctx, el); err != nil {
		return false, err
	}
	if err := p.WaitLoad(); err != nil {
		s.log.Warn("browser: next page load", "error", err)
	}
	// Let the result list render before the caller scrapes it.
	if err := pace.Sleep(ctx, pace.Between(2*time.Second, 4*time.Second)); err != nil {
		return false, err
	}
	return true, nil
}

func element(h processor.Handle) (*rod.Element, error) {
	el, ok := h.(*rod.Element)
	if !ok || el == nil {
		return nil, fmt.Errorf("browser: handle is not a page element")
	}
	return el, nil
}
