package scrape

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeProfileURL normalizes a profile URL into the dedup ledger key:
// scheme and host lowercased, query string, fragment and trailing slash
// stripped. Two links to the same profile (tracking params, trailing slash
// variants) always map to one key.
func NormalizeProfileURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("scrape: empty profile URL")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("scrape: parse profile URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("scrape: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("scrape: missing host in %q", raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	return parsed.String(), nil
}

// IdentityKey returns the ledger key for a candidate: the normalized profile
// URL when one was scraped, else the display name. A name-only key is weaker
// but still prevents re-sending within the same result set.
func IdentityKey(c Candidate) (string, error) {
	if c.ProfileURL != "" {
		return NormalizeProfileURL(c.ProfileURL)
	}
	if c.Name != "" {
		return c.Name, nil
	}
	return "", fmt.Errorf("scrape: candidate has no identity")
}
