package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Highlight names a client that appeared in the day's updates.
type Highlight struct {
	ClientID    string `json:"client_id"`
	CompanyName string `json:"company_name"`
}

// Highlights is the typed form of the client_highlights JSON column.
type Highlights []Highlight

// Scan implements sql.Scanner. Entries without a client id are dropped.
func (h *Highlights) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*h = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan highlights from %T: %w", src, ErrInvalidBlob)
	}
	if len(strings.TrimSpace(string(data))) == 0 || string(data) == "null" {
		*h = nil
		return nil
	}
	var raw []Highlight
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode highlights: %w", ErrInvalidBlob)
	}
	out := make(Highlights, 0, len(raw))
	for _, r := range raw {
		if r.ClientID == "" {
			continue
		}
		out = append(out, r)
	}
	*h = out
	return nil
}

// Value implements driver.Valuer.
func (h Highlights) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Highlight(h))
	if err != nil {
		return nil, fmt.Errorf("encode highlights: %w", err)
	}
	return string(b), nil
}

// DailySynthesis is the generated briefing for one coach and one day.
type DailySynthesis struct {
	ID               string         `json:"id"`
	CoachID          string         `json:"-"`
	Date             Date           `json:"date"`
	Content          string         `json:"content"`
	Summary          string         `json:"summary"`
	ClientHighlights Highlights     `json:"client_highlights"`
	ActionItems      ActionItemList `json:"action_items"`
	CreatedAt        time.Time      `json:"created_at"`
}
