// Package model contains domain models passed between layers.
package model

import "time"

// ClientStatus is the lifecycle state a coach assigns to a client.
type ClientStatus string

// Client statuses.
const (
	ClientActive    ClientStatus = "active"
	ClientAtRisk    ClientStatus = "at_risk"
	ClientInactive  ClientStatus = "inactive"
	ClientCompleted ClientStatus = "completed"
)

// Engagement score bounds.
const (
	MinEngagementScore = 0
	MaxEngagementScore = 100
)

// Client is a company a coach works with.
type Client struct {
	ID              string       `json:"id"`
	CoachID         string       `json:"-"`
	CompanyName     string       `json:"company_name"`
	EngagementScore int          `json:"engagement_score"`
	Status          ClientStatus `json:"status"`
	Industry        string       `json:"industry,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// ParseClientStatus validates s against the known statuses.
func ParseClientStatus(s string) (ClientStatus, bool) {
	switch st := ClientStatus(s); st {
	case ClientActive, ClientAtRisk, ClientInactive, ClientCompleted:
		return st, true
	}
	return "", false
}

// ActivitySample is the per-client activity inside one scoring window.
type ActivitySample struct {
	Reflections    int
	Updates        int
	TasksCompleted int
	TasksTotal     int
}

// Contact is a person at a client company.
type Contact struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	CoachID   string `json:"-"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// SessionNote is a coach's note from a session with a client.
type SessionNote struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	CoachID     string    `json:"-"`
	Content     string    `json:"content"`
	SessionDate Date      `json:"session_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reflection is a client's periodic check-in.
type Reflection struct {
	ID                  string    `json:"id"`
	ClientID            string    `json:"client_id"`
	CoachID             string    `json:"-"`
	EnergyLevel         int       `json:"energy_level"`
	AccountabilityScore int       `json:"accountability_score"`
	GoalProgress        string    `json:"goal_progress,omitempty"`
	Win                 string    `json:"win,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
