package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/coachd/internal/domain/model"
)

var synthesisColumns = []string{ //nolint:gochecknoglobals // column list
	"id", "coach_id", "date", "content", "summary", "client_highlights", "action_items", "created_at",
}

// UpsertSynthesis writes the briefing for (coach, date), overwriting any
// earlier one for the same day.
func (s *SQLStore) UpsertSynthesis(ctx context.Context, ds model.DailySynthesis) error {
	if ds.CoachID == "" {
		return fmt.Errorf("upsert synthesis: %w", ErrMissingScope)
	}
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	return s.Upsert(ctx, tableSyntheses, Row{
		"id":                ds.ID,
		"coach_id":          ds.CoachID,
		"date":              ds.Date,
		"content":           ds.Content,
		"summary":           ds.Summary,
		"client_highlights": ds.ClientHighlights,
		"action_items":      ds.ActionItems,
		"created_at":        s.stamp(ds.CreatedAt),
	}, "coach_id", "date")
}

// GetSynthesis loads the briefing for (coach, date).
func (s *SQLStore) GetSynthesis(ctx context.Context, coachID string, date model.Date) (model.DailySynthesis, error) {
	if coachID == "" {
		return model.DailySynthesis{}, fmt.Errorf("get synthesis: %w", ErrMissingScope)
	}
	var (
		out   model.DailySynthesis
		found bool
	)
	err := s.Select(ctx, tableSyntheses, synthesisColumns, Where().Eq("coach_id", coachID).Eq("date", date).Limit(1), func(rows *sql.Rows) error {
		found = true
		return rows.Scan(&out.ID, &out.CoachID, &out.Date, &out.Content, &out.Summary,
			&out.ClientHighlights, &out.ActionItems, timeValue{&out.CreatedAt})
	})
	if err != nil {
		return model.DailySynthesis{}, err
	}
	if !found {
		return model.DailySynthesis{}, fmt.Errorf("synthesis %s: %w", date, ErrNotFound)
	}
	return out, nil
}
