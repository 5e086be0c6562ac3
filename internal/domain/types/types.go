// Package types contains common types used across the application
package types

// BatchResult reports how many items of a batch run succeeded.
// Used by the engagement recompute and the daily synthesis fan-out.
type BatchResult struct {
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// Failed returns the number of items that were skipped.
func (r BatchResult) Failed() int {
	return r.Total - r.Updated
}

// TriageResult describes what triage wrote onto one update.
type TriageResult struct {
	UpdateID       string `json:"update_id"`
	Classification string `json:"classification"`
	ClientID       string `json:"client_id,omitempty"`
	ActionItems    int    `json:"action_items"`
	TasksCreated   int    `json:"tasks_created"`
}
