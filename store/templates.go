package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Template is a reusable connection-request message with placeholders
// ({{firstName}}, {{company}}, ...) resolved per candidate at send time.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Sent      int       `json:"sent"`
}

// ErrTemplateNotFound is returned when a template id does not resolve.
var ErrTemplateNotFound = errors.New("store: template not found")

const defaultTemplateBody = "Hi {{firstName}}, I came across your profile and " +
	"I'm impressed by your work as {{job}} at {{company}}. I'd love to connect " +
	"and exchange ideas!"

// Templates lists all templates, seeding a default one on first use so a
// fresh install can start a run immediately.
func (s *Store) Templates(ctx context.Context) ([]Template, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, body, created_at, sent FROM templates ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		tpl, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}

	if len(out) == 0 {
		seed := Template{Name: "Default Intro", Body: defaultTemplateBody}
		seeded, err := s.SaveTemplate(ctx, seed)
		if err != nil {
			return nil, err
		}
		out = append(out, seeded)
	}
	return out, nil
}

// TemplateByID fetches one template. Returns ErrTemplateNotFound when the
// id does not resolve.
func (s *Store) TemplateByID(ctx context.Context, id string) (Template, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, body, created_at, sent FROM templates WHERE id = ?`, id)
	tpl, err := scanTemplate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrTemplateNotFound
	}
	return tpl, err
}

// SaveTemplate inserts or updates a template. An empty ID gets a fresh
// "tpl_" identifier assigned.
func (s *Store) SaveTemplate(ctx context.Context, tpl Template) (Template, error) {
	if tpl.ID == "" {
		tpl.ID = s.newTemplateID()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = s.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO templates (id, name, body, created_at, sent)
		VALUES (?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			body = excluded.body`,
		tpl.ID, tpl.Name, tpl.Body, tpl.CreatedAt.Format(time.RFC3339), tpl.Sent)
	if err != nil {
		return Template{}, fmt.Errorf("store: save template: %w", err)
	}
	return tpl, nil
}

// DeleteTemplate removes a template. Deleting an unknown id is a no-op.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete template: %w", err)
	}
	return nil
}

// IncrementTemplateSent bumps the per-template send counter.
func (s *Store) IncrementTemplateSent(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx,
		`UPDATE templates SET sent = sent + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: increment template sent: %w", err)
	}
	return nil
}

func scanTemplate(scan func(...any) error) (Template, error) {
	var tpl Template
	var createdAt string
	if err := scan(&tpl.ID, &tpl.Name, &tpl.Body, &createdAt, &tpl.Sent); err != nil {
		return Template{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Template{}, fmt.Errorf("store: bad template timestamp %q: %w", createdAt, err)
	}
	tpl.CreatedAt = t
	return tpl, nil
}
