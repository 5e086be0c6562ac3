package model

import (
	"strings"
	"time"
)

// Classification labels an inbound update.
type Classification string

// The fixed classification taxonomy.
const (
	ClassProgress      Classification = "progress"
	ClassBlocker       Classification = "blocker"
	ClassCommunication Classification = "communication"
	ClassInsight       Classification = "insight"
	ClassAdmin         Classification = "admin"
)

// DefaultClassification is used whenever a label cannot be determined.
const DefaultClassification = ClassCommunication

// Classifications lists every valid label in display order.
var Classifications = []Classification{ //nolint:gochecknoglobals // fixed taxonomy
	ClassProgress, ClassBlocker, ClassCommunication, ClassInsight, ClassAdmin,
}

// ParseClassification matches s against the taxonomy after lower-casing and
// trimming whitespace, quotes and punctuation.
func ParseClassification(s string) (Classification, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, " \t\r\n\"'`.,;:!?*()[]{}")
	for _, c := range Classifications {
		if s == string(c) {
			return c, true
		}
	}
	return "", false
}

// MessageType is the kind of payload an update arrived as.
type MessageType string

// Message types.
const (
	MessageText     MessageType = "text"
	MessageVoice    MessageType = "voice"
	MessageDocument MessageType = "document"
)

// Update is an inbound message from a chat channel (telegram_updates).
// ClientID and Classification are empty until triage fills them in.
type Update struct {
	ID              string         `json:"id"`
	CoachID         string         `json:"-"`
	ClientID        string         `json:"client_id,omitempty"`
	Content         string         `json:"content"`
	MessageType     MessageType    `json:"message_type"`
	Classification  Classification `json:"classification,omitempty"`
	ActionItems     ActionItemList `json:"action_items,omitempty"`
	VoiceTranscript string         `json:"voice_transcript,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Text returns the content triage should read: the message body, or the
// transcript for voice notes that carry no body.
func (u *Update) Text() string {
	if strings.TrimSpace(u.Content) != "" {
		return u.Content
	}
	return u.VoiceTranscript
}

// TriagePatch holds the fields triage writes back onto an update.
// Nil fields are left untouched.
type TriagePatch struct {
	Classification *Classification
	ClientID       *string
	ActionItems    *ActionItemList
}

// IsEmpty reports whether the patch changes nothing.
func (p TriagePatch) IsEmpty() bool {
	return p.Classification == nil && p.ClientID == nil && p.ActionItems == nil
}
