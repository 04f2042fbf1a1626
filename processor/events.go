package processor

import (
	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/scrape"
)

// Outcome statuses carried by ActionComplete.
const (
	StatusSent    = "sent"
	StatusDryRun  = "dry_run"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Skip reasons.
const (
	SkipAlreadyConnected = "already_connected"
	SkipPendingInvite    = "pending_invitation"
	SkipNoConnectAction  = "no_connect_button"
	SkipAlreadyProcessed = "already_processed"
)

// Event is a processor-to-orchestrator notification. Events are emitted as
// they occur, never buffered to the end of the page.
type Event interface{ processorEvent() }

// ActionComplete reports one candidate's outcome.
type ActionComplete struct {
	Contact scrape.Candidate
	Status  string // sent | dry_run | skipped | error
	Message string // rendered note, for sent/dry_run
	Reason  string // skip reason, for skipped
	Error   string // failure detail, for error
}

// PageComplete reports the aggregate once the page is exhausted or halted.
type PageComplete struct {
	Processed int
	Sent      int
	Skipped   int
	NoResults bool
}

// WarningDetected reports a platform safety indicator; the page halts.
type WarningDetected struct {
	Type    string
	Message string
}

// LimitReached reports a quota denial mid-page; the page halts.
type LimitReached struct {
	Decision quota.Decision
}

// NextPageResult reports the outcome of an async next-page navigation.
type NextPageResult struct {
	OK bool
}

func (ActionComplete) processorEvent()  {}
func (PageComplete) processorEvent()    {}
func (WarningDetected) processorEvent() {}
func (LimitReached) processorEvent()    {}
func (NextPageResult) processorEvent()  {}
