package model

import "time"

// TaskFilter narrows a task listing. CoachID is mandatory.
type TaskFilter struct {
	CoachID  string
	ClientID string
	Statuses []TaskStatus
	Limit    int
}

// UpdateFilter narrows an update listing. CoachID is mandatory.
// Results are newest first unless Ascending is set.
type UpdateFilter struct {
	CoachID        string
	ClientID       string
	Classification Classification
	Since          time.Time
	Until          time.Time
	Ascending      bool
	Limit          int
}

// ReflectionFilter narrows a reflection listing. CoachID is mandatory.
type ReflectionFilter struct {
	CoachID   string
	ClientID  string
	Since     time.Time
	Until     time.Time
	Ascending bool
	Limit     int
}

// NoteFilter narrows a session note search. CoachID is mandatory.
// Query matches note content case-insensitively.
type NoteFilter struct {
	CoachID  string
	ClientID string
	Query    string
	Limit    int
}
