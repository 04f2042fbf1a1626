package dashsync

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/linkreach/store"
)

// queueCap bounds the pending queue. When the dashboard is down for long the
// oldest payloads are dropped first; recent activity is worth more than a
// complete history.
const queueCap = 100

// Queue is the durable FIFO of undelivered payloads, one SQLite table inside
// the main store.
type Queue struct {
	st *store.Store
}

// NewQueue creates the queue over the store's database.
func NewQueue(st *store.Store) *Queue {
	return &Queue{st: st}
}

// Item is one queued payload.
type Item struct {
	Seq      int64
	Endpoint string
	Payload  []byte
	QueuedAt time.Time
}

// Enqueue appends a payload and prunes beyond the cap, oldest first.
func (q *Queue) Enqueue(ctx context.Context, endpoint string, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := q.st.DB.ExecContext(ctx, `
		INSERT INTO sync_queue (endpoint, payload, queued_at)
		VALUES (?,?,?)`,
		endpoint, string(payload), q.st.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("dashsync: enqueue: %w", err)
	}
	_, err = q.st.DB.ExecContext(ctx, `
		DELETE FROM sync_queue WHERE seq NOT IN (
			SELECT seq FROM sync_queue ORDER BY seq DESC LIMIT ?
		)`, queueCap)
	if err != nil {
		return fmt.Errorf("dashsync: prune queue: %w", err)
	}
	return nil
}

// Pending lists queued payloads in arrival order.
func (q *Queue) Pending(ctx context.Context) ([]Item, error) {
	rows, err := q.st.DB.QueryContext(ctx, `
		SELECT seq, endpoint, payload, queued_at
		FROM sync_queue ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("dashsync: list queue: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var payload, queuedAt string
		if err := rows.Scan(&it.Seq, &it.Endpoint, &payload, &queuedAt); err != nil {
			return nil, fmt.Errorf("dashsync: scan queue item: %w", err)
		}
		it.Payload = []byte(payload)
		t, err := time.Parse(time.RFC3339, queuedAt)
		if err != nil {
			return nil, fmt.Errorf("dashsync: bad queue timestamp %q: %w", queuedAt, err)
		}
		it.QueuedAt = t
		out = append(out, it)
	}
	return out, rows.Err()
}

// Remove deletes a delivered payload.
func (q *Queue) Remove(ctx context.Context, seq int64) error {
	if _, err := q.st.DB.ExecContext(ctx, `DELETE FROM sync_queue WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("dashsync: remove queue item: %w", err)
	}
	return nil
}

// Len reports the queue depth.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.st.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("dashsync: queue depth: %w", err)
	}
	return n, nil
}
