package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Activity entry types. Every orchestrator transition and terminal reason is
// logged with one of these stable discriminants, so UIs render explanations
// without re-deriving them from raw errors.
const (
	ActivityAction   = "action"
	ActivityStarted  = "automation_started"
	ActivityStopped  = "automation_stopped"
	ActivityComplete = "automation_complete"
	ActivityPaused   = "automation_paused"
	ActivityPageDone = "page_complete"
	ActivityWarning  = "warning"
	ActivityLimitHit = "limit_reached"
)

// activityCap bounds the log; oldest entries are evicted first.
const activityCap = 500

// ActivityEntry is one row of the bounded, newest-first activity log.
type ActivityEntry struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AppendActivity appends a typed entry and prunes the log to its cap.
func (s *Store) AppendActivity(ctx context.Context, typ string, payload any) error {
	body := []byte("{}")
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("store: marshal activity payload: %w", err)
		}
	}
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO activity_log (type, payload, created_at) VALUES (?,?,?)`,
		typ, string(body), s.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("store: append activity: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `
		DELETE FROM activity_log WHERE seq NOT IN (
			SELECT seq FROM activity_log ORDER BY seq DESC LIMIT ?)`, activityCap); err != nil {
		return fmt.Errorf("store: prune activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to n entries, newest first.
func (s *Store) RecentActivity(ctx context.Context, n int) ([]ActivityEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT seq, type, payload, created_at FROM activity_log
		ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var payload, createdAt string
		if err := rows.Scan(&e.Seq, &e.Type, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan activity: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: bad activity timestamp %q: %w", createdAt, err)
		}
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = t
		out = append(out, e)
	}
	return out, rows.Err()
}
