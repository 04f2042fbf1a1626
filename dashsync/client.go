// Package dashsync mirrors run data to the companion dashboard. Mirroring is
// strictly best-effort: the automation core never blocks on the dashboard,
// never fails because of it, and keeps a durable FIFO of payloads that could
// not be delivered.
package dashsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrNotConfigured is returned by VerifyAndSync when no API key is set.
var ErrNotConfigured = errors.New("dashsync: no API key configured")

// Dashboard endpoints, relative to {base}/api/ext.
const (
	EndpointAuth     = "/auth"
	EndpointActions  = "/actions"
	EndpointActivity = "/activity"
)

// EndpointCampaignStatus is the per-campaign checkpoint endpoint.
func EndpointCampaignStatus(id string) string {
	return "/campaign/" + id + "/status"
}

// OutcomeStatus maps an internal outcome status to the dashboard vocabulary.
// The dashboard has no dry-run notion: a rehearsed send reports as sent.
func OutcomeStatus(status string) string {
	if status == "dry_run" {
		return "sent"
	}
	return status
}

// Config wires a Client. Queue is required; an empty APIKey disables the
// client entirely.
type Config struct {
	BaseURL string
	APIKey  string
	Queue   *Queue

	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Client posts JSON payloads to the dashboard with bearer auth.
type Client struct {
	base   string
	apiKey string
	queue  *Queue
	http   *http.Client
	log    *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	connected bool
	lastSync  time.Time
}

// NewClient creates a Client. Panics without a queue, which is a wiring bug.
func NewClient(cfg Config) *Client {
	if cfg.Queue == nil {
		panic("dashsync: client needs a queue")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		base:   cfg.BaseURL,
		apiKey: cfg.APIKey,
		queue:  cfg.Queue,
		http:   cfg.HTTPClient,
		log:    cfg.Logger,
		now:    cfg.Now,
	}
}

// Enabled reports whether the dashboard link is configured at all.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Status describes the link state for the control API.
type Status struct {
	Configured bool      `json:"configured"`
	Connected  bool      `json:"connected"`
	LastSync   time.Time `json:"lastSync,omitzero"`
	Pending    int       `json:"pending"`
}

// Status reports link health and queue depth.
func (c *Client) Status(ctx context.Context) Status {
	pending, err := c.queue.Len(ctx)
	if err != nil {
		c.log.Warn("dashsync: queue depth read failed", "error", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Configured: c.Enabled(),
		Connected:  c.connected,
		LastSync:   c.lastSync,
		Pending:    pending,
	}
}

// Sync posts one payload, fire and forget. Failures land in the durable
// queue for the sweeper; nothing is ever reported back to the caller. No-op
// when the client is not configured.
func (c *Client) Sync(ctx context.Context, endpoint string, payload any) {
	if !c.Enabled() {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("dashsync: marshal payload", "endpoint", endpoint, "error", err)
		return
	}
	if _, err := c.post(ctx, endpoint, body); err != nil {
		c.log.Warn("dashsync: delivery failed, queued", "endpoint", endpoint, "error", err)
		c.setConnected(false)
		if qerr := c.queue.Enqueue(ctx, endpoint, body); qerr != nil {
			c.log.Error("dashsync: queue write failed", "error", qerr)
		}
		return
	}
	c.touch()
}

// AuthResult is the snapshot returned by the dashboard handshake.
type AuthResult struct {
	User      json.RawMessage `json:"user"`
	Settings  json.RawMessage `json:"settings"`
	Templates json.RawMessage `json:"templates"`
	Campaigns json.RawMessage `json:"campaigns"`
}

// VerifyAndSync performs the one-shot /auth handshake. A non-error response
// marks the link connected and returns the dashboard's snapshot.
func (c *Client) VerifyAndSync(ctx context.Context) (*AuthResult, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	data, err := c.post(ctx, EndpointAuth, []byte("{}"))
	if err != nil {
		c.setConnected(false)
		return nil, err
	}
	var res AuthResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("dashsync: decode auth response: %w", err)
	}
	c.touch()
	return &res, nil
}

// Sweep retries queued payloads in arrival order. Successes are removed;
// failures stay in place for the next sweep. No backoff: the sweep interval
// is the backoff.
func (c *Client) Sweep(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	items, err := c.queue.Pending(ctx)
	if err != nil {
		c.log.Error("dashsync: queue read failed", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	var flushed int
	for _, it := range items {
		if _, err := c.post(ctx, it.Endpoint, it.Payload); err != nil {
			continue
		}
		if err := c.queue.Remove(ctx, it.Seq); err != nil {
			c.log.Error("dashsync: queue remove failed", "seq", it.Seq, "error", err)
			continue
		}
		flushed++
	}
	if flushed > 0 {
		c.log.Info("dashsync: flushed pending payloads",
			"flushed", flushed, "remaining", len(items)-flushed)
		c.touch()
	}
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/ext"+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dashsync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dashsync: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("dashsync: %s: read response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dashsync: %s: HTTP %d", endpoint, resp.StatusCode)
	}
	return data, nil
}

func (c *Client) touch() {
	c.mu.Lock()
	c.connected = true
	c.lastSync = c.now()
	c.mu.Unlock()
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
