package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/coachd/internal/domain/model"
)

var clientColumns = []string{"id", "coach_id", "company_name", "engagement_score", "status", "industry", "created_at"} //nolint:gochecknoglobals // column list

func scanClient(rows *sql.Rows) (model.Client, error) {
	var (
		c        model.Client
		status   string
		industry sql.NullString
	)
	err := rows.Scan(&c.ID, &c.CoachID, &c.CompanyName, &c.EngagementScore, &status, &industry, timeValue{&c.CreatedAt})
	c.Status = model.ClientStatus(status)
	c.Industry = industry.String
	return c, err
}

func (s *SQLStore) selectClients(ctx context.Context, f *Filter) ([]model.Client, error) {
	var out []model.Client
	err := s.Select(ctx, tableClients, clientColumns, f, func(rows *sql.Rows) error {
		c, err := scanClient(rows)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// ListAllClients returns every client across coaches. Only the engagement
// batch reads unscoped.
func (s *SQLStore) ListAllClients(ctx context.Context) ([]model.Client, error) {
	return s.selectClients(ctx, Where().OrderBy("created_at", false).OrderBy("id", false))
}

// ListClients returns a coach's clients ordered by name, optionally narrowed
// to one status.
func (s *SQLStore) ListClients(ctx context.Context, coachID string, status model.ClientStatus) ([]model.Client, error) {
	if coachID == "" {
		return nil, fmt.Errorf("list clients: %w", ErrMissingScope)
	}
	f := Where().Eq("coach_id", coachID)
	if status != "" {
		f.Eq("status", string(status))
	}
	return s.selectClients(ctx, f.OrderBy("company_name", false))
}

// GetClient loads one of a coach's clients.
func (s *SQLStore) GetClient(ctx context.Context, coachID, clientID string) (model.Client, error) {
	if coachID == "" {
		return model.Client{}, fmt.Errorf("get client: %w", ErrMissingScope)
	}
	cs, err := s.selectClients(ctx, Where().Eq("coach_id", coachID).Eq("id", clientID).Limit(1))
	if err != nil {
		return model.Client{}, err
	}
	if len(cs) == 0 {
		return model.Client{}, fmt.Errorf("client %s: %w", clientID, ErrNotFound)
	}
	return cs[0], nil
}

// FindClientByName matches a coach's client by company name, ignoring case.
func (s *SQLStore) FindClientByName(ctx context.Context, coachID, name string) (model.Client, error) {
	if coachID == "" {
		return model.Client{}, fmt.Errorf("find client: %w", ErrMissingScope)
	}
	cs, err := s.selectClients(ctx, Where().Eq("coach_id", coachID).EqFold("company_name", name).Limit(1))
	if err != nil {
		return model.Client{}, err
	}
	if len(cs) == 0 {
		return model.Client{}, fmt.Errorf("client %q: %w", name, ErrNotFound)
	}
	return cs[0], nil
}

// ListCoachIDs returns every coach that owns at least one client.
func (s *SQLStore) ListCoachIDs(ctx context.Context) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	err := s.Select(ctx, tableClients, []string{"coach_id"}, Where().OrderBy("coach_id", false), func(rows *sql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

// UpdateEngagementScore writes the score for one client.
func (s *SQLStore) UpdateEngagementScore(ctx context.Context, clientID string, score int) error {
	n, err := s.Update(ctx, tableClients, Where().Eq("id", clientID), Row{"engagement_score": score})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("client %s: %w", clientID, ErrNotFound)
	}
	return nil
}

// InsertClients adds clients, assigning ids and timestamps where missing.
func (s *SQLStore) InsertClients(ctx context.Context, clients ...model.Client) error {
	rows := make([]Row, len(clients))
	for i, c := range clients {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.Status == "" {
			c.Status = model.ClientActive
		}
		rows[i] = Row{
			"id":               c.ID,
			"coach_id":         c.CoachID,
			"company_name":     c.CompanyName,
			"engagement_score": c.EngagementScore,
			"status":           string(c.Status),
			"industry":         nullable(c.Industry),
			"created_at":       s.stamp(c.CreatedAt),
		}
	}
	return s.Insert(ctx, tableClients, rows...)
}
