package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/coachd/internal/domain/model"
)

var reflectionColumns = []string{ //nolint:gochecknoglobals // column list
	"id", "client_id", "coach_id", "energy_level", "accountability_score",
	"goal_progress", "win", "created_at",
}

// CountReflections counts a client's reflections in [since, until).
func (s *SQLStore) CountReflections(ctx context.Context, clientID string, since, until time.Time) (int, error) {
	if clientID == "" {
		return 0, fmt.Errorf("count reflections: %w", ErrMissingScope)
	}
	return s.Count(ctx, tableReflections, Where().
		Eq("client_id", clientID).
		Gte("created_at", since).
		Lt("created_at", until))
}

// ListReflections returns a coach's reflections matching the filter.
func (s *SQLStore) ListReflections(ctx context.Context, rf model.ReflectionFilter) ([]model.Reflection, error) {
	if rf.CoachID == "" {
		return nil, fmt.Errorf("list reflections: %w", ErrMissingScope)
	}
	f := Where().Eq("coach_id", rf.CoachID)
	if rf.ClientID != "" {
		f.Eq("client_id", rf.ClientID)
	}
	if !rf.Since.IsZero() {
		f.Gte("created_at", rf.Since)
	}
	if !rf.Until.IsZero() {
		f.Lt("created_at", rf.Until)
	}
	f.OrderBy("created_at", !rf.Ascending).OrderBy("id", false).Limit(rf.Limit)

	var out []model.Reflection
	err := s.Select(ctx, tableReflections, reflectionColumns, f, func(rows *sql.Rows) error {
		var (
			r         model.Reflection
			goal, win sql.NullString
			energy    sql.NullInt64
			account   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.ClientID, &r.CoachID, &energy, &account, &goal, &win, timeValue{&r.CreatedAt}); err != nil {
			return err
		}
		r.EnergyLevel = int(energy.Int64)
		r.AccountabilityScore = int(account.Int64)
		r.GoalProgress = goal.String
		r.Win = win.String
		out = append(out, r)
		return nil
	})
	return out, err
}

// InsertReflections adds reflections. Used by seeding and tests.
func (s *SQLStore) InsertReflections(ctx context.Context, refs ...model.Reflection) error {
	rows := make([]Row, len(refs))
	for i, r := range refs {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		rows[i] = Row{
			"id":                   r.ID,
			"client_id":            r.ClientID,
			"coach_id":             r.CoachID,
			"energy_level":         r.EnergyLevel,
			"accountability_score": r.AccountabilityScore,
			"goal_progress":        nullable(r.GoalProgress),
			"win":                  nullable(r.Win),
			"created_at":           s.stamp(r.CreatedAt),
		}
	}
	return s.Insert(ctx, tableReflections, rows...)
}
