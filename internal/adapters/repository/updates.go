package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/coachd/internal/domain/model"
)

var updateColumns = []string{ //nolint:gochecknoglobals // column list
	"id", "coach_id", "client_id", "content", "message_type", "classification",
	"action_items", "voice_transcript", "created_at",
}

func scanUpdate(rows *sql.Rows) (model.Update, error) {
	var (
		u               model.Update
		clientID, class sql.NullString
		transcript      sql.NullString
		messageType     string
	)
	err := rows.Scan(&u.ID, &u.CoachID, &clientID, &u.Content, &messageType, &class,
		&u.ActionItems, &transcript, timeValue{&u.CreatedAt})
	u.ClientID = clientID.String
	u.Classification = model.Classification(class.String)
	u.VoiceTranscript = transcript.String
	u.MessageType = model.MessageType(messageType)
	return u, err
}

func (s *SQLStore) selectUpdates(ctx context.Context, f *Filter) ([]model.Update, error) {
	var out []model.Update
	err := s.Select(ctx, tableUpdates, updateColumns, f, func(rows *sql.Rows) error {
		u, err := scanUpdate(rows)
		if err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	return out, err
}

// GetUpdate loads one update by id.
func (s *SQLStore) GetUpdate(ctx context.Context, id string) (model.Update, error) {
	us, err := s.selectUpdates(ctx, Where().Eq("id", id).Limit(1))
	if err != nil {
		return model.Update{}, err
	}
	if len(us) == 0 {
		return model.Update{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	return us[0], nil
}

// ListUpdates returns a coach's updates matching the filter.
func (s *SQLStore) ListUpdates(ctx context.Context, uf model.UpdateFilter) ([]model.Update, error) {
	if uf.CoachID == "" {
		return nil, fmt.Errorf("list updates: %w", ErrMissingScope)
	}
	f := Where().Eq("coach_id", uf.CoachID)
	if uf.ClientID != "" {
		f.Eq("client_id", uf.ClientID)
	}
	if uf.Classification != "" {
		f.Eq("classification", string(uf.Classification))
	}
	if !uf.Since.IsZero() {
		f.Gte("created_at", uf.Since)
	}
	if !uf.Until.IsZero() {
		f.Lt("created_at", uf.Until)
	}
	return s.selectUpdates(ctx, f.OrderBy("created_at", !uf.Ascending).OrderBy("id", false).Limit(uf.Limit))
}

// CountLinkedUpdates counts updates attributed to a client in [since, until).
func (s *SQLStore) CountLinkedUpdates(ctx context.Context, clientID string, since, until time.Time) (int, error) {
	if clientID == "" {
		return 0, fmt.Errorf("count updates: %w", ErrMissingScope)
	}
	return s.Count(ctx, tableUpdates, Where().
		Eq("client_id", clientID).
		Gte("created_at", since).
		Lt("created_at", until))
}

// UpdateTriage writes triage output onto an update.
func (s *SQLStore) UpdateTriage(ctx context.Context, id string, patch model.TriagePatch) error {
	if patch.IsEmpty() {
		return nil
	}
	row := Row{}
	if patch.Classification != nil {
		row["classification"] = string(*patch.Classification)
	}
	if patch.ClientID != nil {
		row["client_id"] = nullable(*patch.ClientID)
	}
	if patch.ActionItems != nil {
		row["action_items"] = *patch.ActionItems
	}
	n, err := s.Update(ctx, tableUpdates, Where().Eq("id", id), row)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	return nil
}

// InsertUpdates adds inbound updates. Ingestion normally owns this; it is
// used by seeding and tests.
func (s *SQLStore) InsertUpdates(ctx context.Context, updates ...model.Update) error {
	rows := make([]Row, len(updates))
	for i, u := range updates {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.MessageType == "" {
			u.MessageType = model.MessageText
		}
		rows[i] = Row{
			"id":               u.ID,
			"coach_id":         u.CoachID,
			"client_id":        nullable(u.ClientID),
			"content":          u.Content,
			"message_type":     string(u.MessageType),
			"classification":   nullable(string(u.Classification)),
			"action_items":     u.ActionItems,
			"voice_transcript": nullable(u.VoiceTranscript),
			"created_at":       s.stamp(u.CreatedAt),
		}
	}
	return s.Insert(ctx, tableUpdates, rows...)
}
