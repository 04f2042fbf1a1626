package store

import (
	"context"
	"fmt"
	"time"
)

// Contact statuses. Sent, skipped and pending are terminal for dedup:
// a ledger row with one of those statuses is never reprocessed. Error rows
// are written only by external imports — the processor deliberately leaves
// failed candidates out of the ledger so they can be retried in later runs.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusError   = "error"
	StatusPending = "pending" // dry-run rehearsal of a send
)

// Contact is one row of the dedup ledger, keyed by normalized profile URL.
type Contact struct {
	ProfileKey  string    `json:"profileKey"`
	Name        string    `json:"name"`
	Headline    string    `json:"headline"`
	Company     string    `json:"company"`
	MessageSent string    `json:"messageSent"`
	Status      string    `json:"status"`
	SentAt      time.Time `json:"sentAt"`
}

// IsProcessed reports whether the profile already has a terminal ledger
// entry. Error rows do not count: a profile that failed last time is fair
// game for a retry.
func (s *Store) IsProcessed(ctx context.Context, profileKey string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contacts
		WHERE profile_key = ? AND status IN (?, ?, ?)`,
		profileKey, StatusSent, StatusSkipped, StatusPending).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: is processed: %w", err)
	}
	return n > 0, nil
}

// RecordContact upserts the ledger row for a profile. At most one row per
// normalized identity exists; a later outcome replaces the earlier one.
func (s *Store) RecordContact(ctx context.Context, c Contact) error {
	if c.ProfileKey == "" {
		return fmt.Errorf("store: contact has no profile key")
	}
	if c.SentAt.IsZero() {
		c.SentAt = s.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO contacts (profile_key, name, headline, company, message_sent, status, sent_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (profile_key) DO UPDATE SET
			name = excluded.name,
			headline = excluded.headline,
			company = excluded.company,
			message_sent = excluded.message_sent,
			status = excluded.status,
			sent_at = excluded.sent_at`,
		c.ProfileKey, c.Name, c.Headline, c.Company, c.MessageSent, c.Status,
		c.SentAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: record contact: %w", err)
	}
	return nil
}

// Contacts lists the ledger newest-first.
func (s *Store) Contacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT profile_key, name, headline, company, message_sent, status, sent_at
		FROM contacts ORDER BY sent_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		var sentAt string
		if err := rows.Scan(&c.ProfileKey, &c.Name, &c.Headline, &c.Company,
			&c.MessageSent, &c.Status, &sentAt); err != nil {
			return nil, fmt.Errorf("store: scan contact: %w", err)
		}
		t, err := time.Parse(time.RFC3339, sentAt)
		if err != nil {
			return nil, fmt.Errorf("store: bad contact timestamp %q: %w", sentAt, err)
		}
		c.SentAt = t
		out = append(out, c)
	}
	return out, rows.Err()
}
