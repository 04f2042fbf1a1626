package browser

import "github.com/hazyhaar/linkreach/processor"

// Selector strategy, in priority order: aria-label and data-* attributes
// (most stable), semantic structure, CSS class names (the platform churns
// these the most). Kept in one place so markup changes mean one edit.
const (
	selResultCard = `li.reusable-search__result-container, [data-view-name="search-entity-result-universal-template"]`
	selNoResults  = `.search-reusable-search-no-results`
	selNextPage   = `button[aria-label="Next"]`
)

// controlSelectors maps the processor's named controls to page selectors.
var controlSelectors = map[processor.Control]string{
	processor.ControlConnect:   `button[aria-label*="Invite"][aria-label*="to connect"], button[aria-label*="Connect"]`,
	processor.ControlAddNote:   `button[aria-label="Add a note"]`,
	processor.ControlNoteField: `textarea[name="message"], textarea#custom-message`,
	processor.ControlSend:      `button[aria-label="Send invitation"], button[aria-label="Send now"]`,
	processor.ControlCancel:    `button[aria-label="Dismiss"], button[aria-label="Cancel"]`,
}

// warningChecks are scanned in priority order: a captcha outranks a generic
// error banner when both are present.
var warningChecks = []struct {
	Type string
	Sel  string
}{
	{"captcha", `iframe[src*="captcha"], iframe[src*="challenge"]`},
	{"rate_limit", `.ip-fencing-login__content`},
	{"warning", `.artdeco-inline-feedback--error, .artdeco-toast-item--error`},
}
