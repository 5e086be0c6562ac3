package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/coachd/internal/domain/model"
)

var (
	contactColumns = []string{"id", "client_id", "coach_id", "name", "email", "role", "is_primary"}   //nolint:gochecknoglobals // column list
	noteColumns    = []string{"id", "client_id", "coach_id", "content", "session_date", "created_at"} //nolint:gochecknoglobals // column list
)

// ListContacts returns the contacts for one of a coach's clients, primary first.
func (s *SQLStore) ListContacts(ctx context.Context, coachID, clientID string) ([]model.Contact, error) {
	if coachID == "" {
		return nil, fmt.Errorf("list contacts: %w", ErrMissingScope)
	}
	f := Where().Eq("coach_id", coachID).Eq("client_id", clientID).OrderBy("is_primary", true).OrderBy("name", false)

	var out []model.Contact
	err := s.Select(ctx, tableContacts, contactColumns, f, func(rows *sql.Rows) error {
		var (
			c           model.Contact
			email, role sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ClientID, &c.CoachID, &c.Name, &email, &role, &c.IsPrimary); err != nil {
			return err
		}
		c.Email = email.String
		c.Role = role.String
		out = append(out, c)
		return nil
	})
	return out, err
}

// InsertContacts adds contacts. Used by seeding and tests.
func (s *SQLStore) InsertContacts(ctx context.Context, contacts ...model.Contact) error {
	rows := make([]Row, len(contacts))
	for i, c := range contacts {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		rows[i] = Row{
			"id":         c.ID,
			"client_id":  c.ClientID,
			"coach_id":   c.CoachID,
			"name":       c.Name,
			"email":      nullable(c.Email),
			"role":       nullable(c.Role),
			"is_primary": c.IsPrimary,
		}
	}
	return s.Insert(ctx, tableContacts, rows...)
}

// SearchNotes returns a coach's session notes whose content contains the
// query, newest first.
func (s *SQLStore) SearchNotes(ctx context.Context, nf model.NoteFilter) ([]model.SessionNote, error) {
	if nf.CoachID == "" {
		return nil, fmt.Errorf("search notes: %w", ErrMissingScope)
	}
	f := Where().Eq("coach_id", nf.CoachID)
	if nf.ClientID != "" {
		f.Eq("client_id", nf.ClientID)
	}
	if nf.Query != "" {
		f.Contains("content", nf.Query)
	}
	f.OrderBy("created_at", true).OrderBy("id", false).Limit(nf.Limit)

	var out []model.SessionNote
	err := s.Select(ctx, tableNotes, noteColumns, f, func(rows *sql.Rows) error {
		var n model.SessionNote
		if err := rows.Scan(&n.ID, &n.ClientID, &n.CoachID, &n.Content, &n.SessionDate, timeValue{&n.CreatedAt}); err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

// InsertNotes adds session notes. Used by seeding and tests.
func (s *SQLStore) InsertNotes(ctx context.Context, notes ...model.SessionNote) error {
	rows := make([]Row, len(notes))
	for i, n := range notes {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		rows[i] = Row{
			"id":           n.ID,
			"client_id":    n.ClientID,
			"coach_id":     n.CoachID,
			"content":      n.Content,
			"session_date": n.SessionDate,
			"created_at":   s.stamp(n.CreatedAt),
		}
	}
	return s.Insert(ctx, tableNotes, rows...)
}
