// Package processor runs the per-page automation loop: it walks the scraped
// candidates of one search results page in order, applies the skip rules,
// consults the quota gate before every send, drives the interaction surface
// through the multi-step connect sequence, and reports each outcome as it
// happens.
//
// The processor never touches a DOM directly. Everything page-shaped hides
// behind the Surface capability, so the loop is tested against synthetic
// surfaces with no browser in sight.
package processor

import (
	"context"
	"time"

	"github.com/hazyhaar/linkreach/scrape"
)

// Control names the page elements the send sequence manipulates.
type Control string

const (
	// ControlConnect is the invite action inside a candidate's card.
	ControlConnect Control = "connect"
	// ControlAddNote reveals the note field in the invite dialog.
	ControlAddNote Control = "add_note"
	// ControlNoteField is the message textarea.
	ControlNoteField Control = "note_field"
	// ControlSend submits the invite.
	ControlSend Control = "send"
	// ControlCancel dismisses the invite dialog.
	ControlCancel Control = "cancel"
)

// Handle is an opaque reference to a located control. Only the Surface that
// produced it knows what it is.
type Handle any

// WarningInfo describes a platform safety indicator found on the page.
type WarningInfo struct {
	Type    string `json:"type"` // captcha | rate_limit | warning | error
	Message string `json:"message,omitempty"`
}

// Surface is the capability the processor drives. The browser package
// implements it over a live tab; tests implement it over fixture data.
//
// Locate calls return a nil Handle (and nil error) when the control is
// absent — absence is an expected page state, not a failure. WaitControl
// polls in bounded intervals and must honor ctx cancellation within one
// interval.
type Surface interface {
	// WaitReady blocks until search results are present or the page is
	// recognisably empty. Returns false when there are no results.
	WaitReady(ctx context.Context) (bool, error)

	// Warning scans the page for safety indicators.
	Warning(ctx context.Context) (*WarningInfo, error)

	// Candidates scrapes the result cards in page order.
	Candidates(ctx context.Context) ([]scrape.Candidate, error)

	// CandidateControl locates a control scoped to one candidate's card.
	CandidateControl(ctx context.Context, index int, name Control) (Handle, error)

	// Control locates a page-scoped control without waiting.
	Control(ctx context.Context, name Control) (Handle, error)

	// WaitControl polls for a page-scoped control up to timeout.
	WaitControl(ctx context.Context, name Control, timeout time.Duration) (Handle, error)

	Click(ctx context.Context, h Handle) error
	Type(ctx context.Context, h Handle, text string) error
	Scroll(ctx context.Context, h Handle) error

	// NextPage advances to the next results page. Returns false when
	// there is none.
	NextPage(ctx context.Context) (bool, error)
}
