package processor

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/linkreach/scrape"
)

var placeholderRe = regexp.MustCompile(`(?i)\{\{\s*(name|firstname|job|headline|company)\s*\}\}`)

// Fallbacks keep rendered notes grammatical when a card field was missing.
const (
	fallbackName     = "there"
	fallbackHeadline = "your role"
	fallbackCompany  = "your company"
)

// Render substitutes the template placeholders with the candidate's scraped
// fields. Placeholders are case-insensitive and tolerate inner whitespace;
// unknown placeholders pass through untouched.
func Render(tpl string, c scrape.Candidate) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		key := strings.ToLower(strings.Trim(m, "{} \t"))
		switch key {
		case "name":
			if c.Name != "" {
				return c.Name
			}
			return fallbackName
		case "firstname":
			if first := c.FirstName(); first != "" {
				return first
			}
			return fallbackName
		case "job", "headline":
			if c.Headline != "" {
				return c.Headline
			}
			return fallbackHeadline
		case "company":
			if c.Company != "" {
				return c.Company
			}
			return fallbackCompany
		}
		return m
	})
}
