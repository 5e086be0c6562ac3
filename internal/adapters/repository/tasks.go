package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/coachd/internal/domain/model"
)

var taskColumns = []string{ //nolint:gochecknoglobals // column list
	"id", "coach_id", "client_id", "title", "description", "priority", "status",
	"due_date", "source", "created_at",
}

func scanTask(rows *sql.Rows) (model.Task, error) {
	var (
		t                        model.Task
		clientID, desc           sql.NullString
		priority, status, source string
	)
	err := rows.Scan(&t.ID, &t.CoachID, &clientID, &t.Title, &desc, &priority, &status,
		&t.DueDate, &source, timeValue{&t.CreatedAt})
	t.ClientID = clientID.String
	t.Description = desc.String
	t.Priority = model.ParsePriority(priority)
	t.Status = model.TaskStatus(status)
	t.Source = model.TaskSource(source)
	return t, err
}

// ListTasks returns a coach's tasks matching the filter, newest first.
func (s *SQLStore) ListTasks(ctx context.Context, tf model.TaskFilter) ([]model.Task, error) {
	if tf.CoachID == "" {
		return nil, fmt.Errorf("list tasks: %w", ErrMissingScope)
	}
	f := Where().Eq("coach_id", tf.CoachID)
	if tf.ClientID != "" {
		f.Eq("client_id", tf.ClientID)
	}
	if len(tf.Statuses) > 0 {
		vals := make([]any, len(tf.Statuses))
		for i, st := range tf.Statuses {
			vals[i] = string(st)
		}
		f.In("status", vals...)
	}
	f.OrderBy("created_at", true).OrderBy("id", false).Limit(tf.Limit)

	var out []model.Task
	err := s.Select(ctx, tableTasks, taskColumns, f, func(rows *sql.Rows) error {
		t, err := scanTask(rows)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// CountTasksDue counts a client's tasks due in [from, to), split into
// completed and total.
func (s *SQLStore) CountTasksDue(ctx context.Context, clientID string, from, to model.Date) (completed, total int, err error) {
	if clientID == "" {
		return 0, 0, fmt.Errorf("count tasks: %w", ErrMissingScope)
	}
	window := func() *Filter {
		return Where().Eq("client_id", clientID).Gte("due_date", from).Lt("due_date", to)
	}
	total, err = s.Count(ctx, tableTasks, window())
	if err != nil {
		return 0, 0, err
	}
	completed, err = s.Count(ctx, tableTasks, window().Eq("status", string(model.TaskCompleted)))
	if err != nil {
		return 0, 0, err
	}
	return completed, total, nil
}

// InsertTasks adds tasks in one statement.
func (s *SQLStore) InsertTasks(ctx context.Context, tasks ...model.Task) error {
	rows := make([]Row, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Status == "" {
			t.Status = model.TaskPending
		}
		if t.Source == "" {
			t.Source = model.SourceManual
		}
		rows[i] = Row{
			"id":          t.ID,
			"coach_id":    t.CoachID,
			"client_id":   nullable(t.ClientID),
			"title":       t.Title,
			"description": nullable(t.Description),
			"priority":    string(model.ParsePriority(string(t.Priority))),
			"status":      string(t.Status),
			"due_date":    t.DueDate,
			"source":      string(t.Source),
			"created_at":  s.stamp(t.CreatedAt),
		}
	}
	return s.Insert(ctx, tableTasks, rows...)
}
