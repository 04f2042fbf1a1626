package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Session is the tab pinned to the people-search results page. It is created
// lazily: the first EnsureReady opens a stealth tab and navigates it; later
// calls reuse the live tab and only renavigate when it died.
type Session struct {
	mgr *Manager
	log *slog.Logger

	mu   sync.Mutex
	page *rod.Page
}

// NewSession creates a Session over the manager's browser.
func NewSession(mgr *Manager, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{mgr: mgr, log: log}
}

// EnsureReady attaches to the search tab, opening and navigating it on first
// use. Idempotent: a healthy tab is left alone, a dead one is replaced.
func (s *Session) EnsureReady(ctx context.Context, searchURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		if _, err := s.page.Info(); err == nil {
			return nil
		}
		s.log.Warn("browser: search tab died, reopening")
		s.page = nil
	}

	b := s.mgr.Browser()
	if b == nil {
		return fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(searchURL); err != nil {
		page.Close()
		return fmt.Errorf("browser: navigate %s: %w", searchURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.log.Warn("browser: wait load timeout", "url", searchURL, "error", err)
	}

	s.page = page
	s.log.Info("browser: search tab ready", "url", searchURL)
	return nil
}

// Page returns the current tab, or nil before EnsureReady.
func (s *Session) Page() *rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Close closes the search tab if one is open.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.log.Warn("browser: close tab", "error", err)
		}
		s.page = nil
	}
}
