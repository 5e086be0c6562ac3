package model

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task statuses.
const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// OpenTaskStatuses are the non-terminal statuses.
var OpenTaskStatuses = []TaskStatus{TaskPending, TaskInProgress} //nolint:gochecknoglobals // fixed set

// ParseTaskStatus validates s against the known statuses.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch st := TaskStatus(s); st {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled:
		return st, true
	}
	return "", false
}

// IsOpen reports whether the status is non-terminal.
func (s TaskStatus) IsOpen() bool {
	return s == TaskPending || s == TaskInProgress
}

// TaskSource records how a task was created.
type TaskSource string

// Task sources.
const (
	SourceManual      TaskSource = "manual"
	SourceAIExtracted TaskSource = "ai_extracted"
)

// Task is a unit of follow-up work for a coach.
type Task struct {
	ID          string     `json:"id"`
	CoachID     string     `json:"-"`
	ClientID    string     `json:"client_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     Date       `json:"due_date,omitempty"`
	Source      TaskSource `json:"source"`
	CreatedAt   time.Time  `json:"created_at"`
}
