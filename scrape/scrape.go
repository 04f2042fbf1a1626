// Package scrape extracts connection candidates from search result markup.
//
// The browser layer hands over the outer HTML of each result card; parsing
// happens here, off the live page, so candidate extraction and skip flags
// are testable without a browser. All text lifted from the page is untrusted
// and is sanitized before it is stored or mirrored to the dashboard.
package scrape

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
)

// Candidate is one scraped search result: a prospective connection target
// plus the card state that drives the skip rules.
type Candidate struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Headline   string `json:"headline"`
	Company    string `json:"company"`
	ProfileURL string `json:"profileUrl"`

	AlreadyConnected bool `json:"alreadyConnected"`
	PendingInvite    bool `json:"pendingInvite"`
	HasConnectAction bool `json:"hasConnectAction"`
}

// FirstName returns the first whitespace-separated token of the name.
func (c Candidate) FirstName() string {
	fields := strings.Fields(c.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

var strict = bluemonday.StrictPolicy()

// CleanText strips any markup from page-derived text, unescapes entities,
// and collapses whitespace. Card text ends up in the activity log and on
// the dashboard, so it must never carry live HTML.
func CleanText(s string) string {
	s = strict.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseCard extracts a Candidate from one result card's outer HTML.
// Returns ok=false when no name can be found (sponsored slots, upsell
// cards and other non-profile entries).
func ParseCard(index int, cardHTML string) (Candidate, bool) {
	root, err := xhtml.Parse(strings.NewReader(cardHTML))
	if err != nil {
		return Candidate{}, false
	}

	c := Candidate{Index: index}

	if title := findByClass(root, "entity-result__title-text"); title != nil {
		if a := findLink(title, "/in/"); a != nil {
			c.ProfileURL = attr(a, "href")
			// Visible name lives in the aria-hidden span; screen-reader
			// text duplicates it with "View X's profile" noise appended.
			if span := findByAttr(a, "aria-hidden", "true"); span != nil {
				c.Name = CleanText(nodeText(span))
			} else {
				c.Name = CleanText(nodeText(a))
			}
		}
	}
	if c.Name == "" {
		return Candidate{}, false
	}

	if n := findByClass(root, "entity-result__primary-subtitle"); n != nil {
		c.Headline = CleanText(nodeText(n))
	} else if n := findByClass(root, "entity-result__summary"); n != nil {
		c.Headline = CleanText(nodeText(n))
	}
	if n := findByClass(root, "entity-result__secondary-subtitle"); n != nil {
		c.Company = CleanText(nodeText(n))
	}

	if n := findByClass(root, "entity-result__badge-text"); n != nil &&
		strings.Contains(nodeText(n), "1st") {
		c.AlreadyConnected = true
	}
	if findByAttr(root, "data-test-badge-text", "1st") != nil {
		c.AlreadyConnected = true
	}

	c.PendingInvite = hasPendingAction(root)
	c.HasConnectAction = findConnectButton(root) != nil

	return c, true
}

// findConnectButton locates the card's invite action by aria-label, the
// most stable hook the markup offers.
func findConnectButton(n *xhtml.Node) *xhtml.Node {
	return find(n, func(n *xhtml.Node) bool {
		if n.Type != xhtml.ElementNode || n.Data != "button" {
			return false
		}
		label := attr(n, "aria-label")
		if strings.Contains(label, "Invite") && strings.Contains(label, "to connect") {
			return true
		}
		return strings.Contains(label, "Connect")
	})
}

func hasPendingAction(n *xhtml.Node) bool {
	if findByClass(n, "invitation-card__action-btn--pending") != nil {
		return true
	}
	pending := find(n, func(n *xhtml.Node) bool {
		if n.Type != xhtml.ElementNode || n.Data != "button" {
			return false
		}
		return strings.Contains(strings.ToLower(nodeText(n)), "pending")
	})
	return pending != nil
}

// ── node helpers ──

func find(n *xhtml.Node, pred func(*xhtml.Node) bool) *xhtml.Node {
	if pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := find(c, pred); m != nil {
			return m
		}
	}
	return nil
}

func findByClass(n *xhtml.Node, class string) *xhtml.Node {
	return find(n, func(n *xhtml.Node) bool {
		if n.Type != xhtml.ElementNode {
			return false
		}
		for _, f := range strings.Fields(attr(n, "class")) {
			if f == class {
				return true
			}
		}
		return false
	})
}

func findByAttr(n *xhtml.Node, key, val string) *xhtml.Node {
	return find(n, func(n *xhtml.Node) bool {
		return n.Type == xhtml.ElementNode && attr(n, key) == val
	})
}

func findLink(n *xhtml.Node, hrefPart string) *xhtml.Node {
	return find(n, func(n *xhtml.Node) bool {
		return n.Type == xhtml.ElementNode && n.Data == "a" &&
			strings.Contains(attr(n, "href"), hrefPart)
	})
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
