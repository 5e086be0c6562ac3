package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Priority ranks an action item or task.
type Priority string

// Priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority returns the matching priority, or medium for anything unknown.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p
	}
	return PriorityMedium
}

// ActionItem is a follow-up extracted from text.
type ActionItem struct {
	Title    string   `json:"title"`
	Priority Priority `json:"priority"`
}

// ActionItemList is the typed form of the action_items JSON column.
type ActionItemList []ActionItem

// ParseActionItems decodes a JSON array of {title, priority} objects.
// Elements that are not objects or carry no non-empty string title are
// dropped; unknown or missing priorities become medium. A document that is
// not an array is an error.
func ParseActionItems(data []byte) (ActionItemList, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode action items: %w", ErrInvalidBlob)
	}
	items := make(ActionItemList, 0, len(raw))
	for _, r := range raw {
		var obj map[string]any
		if err := json.Unmarshal(r, &obj); err != nil || obj == nil {
			continue
		}
		title, ok := obj["title"].(string)
		title = strings.TrimSpace(title)
		if !ok || title == "" {
			continue
		}
		prio, _ := obj["priority"].(string)
		items = append(items, ActionItem{Title: title, Priority: ParsePriority(prio)})
	}
	return items, nil
}

// Scan implements sql.Scanner.
func (l *ActionItemList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan action items from %T: %w", src, ErrInvalidBlob)
	}
	if len(strings.TrimSpace(string(data))) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}
	items, err := ParseActionItems(data)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// Value implements driver.Valuer. A nil list is stored as an empty array.
func (l ActionItemList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]ActionItem(l))
	if err != nil {
		return nil, fmt.Errorf("encode action items: %w", err)
	}
	return string(b), nil
}
