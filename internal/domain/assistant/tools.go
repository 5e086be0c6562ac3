package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/internal/domain/model"
)

// Tool limits.
const (
	defaultLimit      = 20
	maxLimit          = 50
	defaultDays       = 7
	maxDays           = 90
	detailUpdates     = 5
	detailReflections = 3
	statsWindowDays   = 7
)

// Store is the read-only data access the tools use. Every method is scoped
// to one coach.
type Store interface {
	ListClients(ctx context.Context, coachID string, status model.ClientStatus) ([]model.Client, error)
	FindClientByName(ctx context.Context, coachID, name string) (model.Client, error)
	ListContacts(ctx context.Context, coachID, clientID string) ([]model.Contact, error)
	ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error)
	ListUpdates(ctx context.Context, f model.UpdateFilter) ([]model.Update, error)
	ListReflections(ctx context.Context, f model.ReflectionFilter) ([]model.Reflection, error)
	SearchNotes(ctx context.Context, f model.NoteFilter) ([]model.SessionNote, error)
	GetSynthesis(ctx context.Context, coachID string, date model.Date) (model.DailySynthesis, error)
}

type tools struct {
	store Store
	now   func() time.Time
}

// NewCoachTools registers the read-only coaching tools on a new registry.
func NewCoachTools(store Store, now func() time.Time) (*Registry, error) {
	if now == nil {
		now = time.Now
	}
	t := &tools{store: store, now: now}
	r := NewRegistry()
	for _, reg := range []struct {
		def chat.Tool
		h   Handler
	}{
		{toolDef("list_companies", "List the coach's client companies with status and engagement score.",
			props{"status": enumProp("Only companies with this status.", "active", "at_risk", "inactive", "completed")}), t.listCompanies},
		{toolDef("get_company_detail", "Full picture of one company: contacts, open tasks, recent updates and check-ins.",
			props{"company_name": strProp("Company name as returned by list_companies.")}, "company_name"), t.companyDetail},
		{toolDef("list_tasks", "List tasks, newest first.",
			props{
				"status":       enumProp("Only tasks with this status.", "pending", "in_progress", "completed", "cancelled"),
				"company_name": strProp("Only tasks for this company."),
				"limit":        intProp("Maximum number of tasks (default 20, max 50)."),
			}), t.listTasks},
		{toolDef("list_updates", "List inbound client updates, newest first.",
			props{
				"company_name":   strProp("Only updates about this company."),
				"classification": enumProp("Only updates with this label.", "progress", "blocker", "communication", "insight", "admin"),
				"days":           intProp("How many days back to look (default 7, max 90)."),
				"limit":          intProp("Maximum number of updates (default 20, max 50)."),
			}), t.listUpdates},
		{toolDef("get_synthesis", "Get the daily briefing for a date.",
			props{"date": strProp("Date as YYYY-MM-DD. Defaults to today.")}), t.getSynthesis},
		{toolDef("list_reflections", "List client check-ins (energy, accountability, wins), newest first.",
			props{
				"company_name": strProp("Only check-ins from this company."),
				"limit":        intProp("Maximum number of check-ins (default 20, max 50)."),
			}), t.listReflections},
		{toolDef("search_notes", "Search session notes by text.",
			props{
				"query":        strProp("Text to look for, case-insensitive."),
				"company_name": strProp("Only notes for this company."),
				"limit":        intProp("Maximum number of notes (default 20, max 50)."),
			}, "query"), t.searchNotes},
		{toolDef("get_stats", "Portfolio statistics: clients by status, average engagement, open and overdue tasks, recent updates and blockers.",
			props{}), t.stats},
	} {
		if err := r.Register(reg.def, reg.h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

type props map[string]any

func toolDef(name, description string, properties props, required ...string) chat.Tool {
	schema := map[string]any{"type": "object", "properties": map[string]any(properties)}
	if len(required) > 0 {
		schema["required"] = required
	}
	return chat.Tool{Name: name, Description: description, InputSchema: schema}
}

func strProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func enumProp(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// clientID resolves an optional company name; "" means no filter.
func (t *tools) clientID(ctx context.Context, coachID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	c, err := t.store.FindClientByName(ctx, coachID, name)
	if errors.Is(err, model.ErrNotFound) {
		return "", fmt.Errorf("%q: %w", name, ErrCompanyNotFound)
	}
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (t *tools) listCompanies(ctx context.Context, coachID string, input json.RawMessage) (any, error) {
	var in struct {
		Status string `json:"status"`
	}
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	var status model.ClientStatus
	if in.Status != "" {
		st, ok := model.ParseClientStatus(in.Status)
		if !ok {
			return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, in.Status)
		}
		status = st
	}
	clients, err := t.store.ListClients(ctx, coachID, status)
	if err != nil {
		return nil, err
	}
	return map[string]any{"companies": nonNil(clients)}, nil
}

func (t *tools) companyDetail(ctx context.Context, coachID string, input json.RawMessage) (any, error) {
	var in struct {
		CompanyName string `json:"company_name"`
	}
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		return nil, fmt.Errorf("%w: company_name is required", ErrInvalidInput)
	}
	c, err := t.store.FindClientByName(ctx, coachID, strings.TrimSpace(in.CompanyName))
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%q: %w", in.CompanyName, ErrCompanyNotFound)
	}
	if err != nil {
		return nil, err
	}

	contacts, err := t.store.ListContacts(ctx, coachID, c.ID)
	if err != nil {
		return nil, err
	}
	tasks, err := t.store.ListTasks(ctx, model.TaskFilter{CoachID: coachID, ClientID: c.ID, Statuses: model.OpenTaskStatuses})
	if err != nil {
		return nil, err
	}
	updates, err := t.store.ListUpdates(ctx, model.UpdateFilter{CoachID: coachID, ClientID: c.ID, Limit: detailUpdates})
	if err != nil {
		return nil, err
	}
	reflections, err := t.store.ListReflections(ctx, model.ReflectionFilter{CoachID: coachID, ClientID: c.ID, Limit: detailReflections})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"company":            c,
		"contacts":           nonNil(contacts),
		"open_tasks":         nonNil(tasks),
		"recent_updates":     nonNil(updates),
		"recent_reflections": nonNil(reflections),
	}, nil
}

func (t *tools) listTasks(ctx context.Context, coachID string, input json.RawMessage) (any, error) {
	var in struct {
		Status      string `json:"status"`
		CompanyName string `json:"company_name"`
		Limit       int    `json:"limit"`
	}
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	f := model.TaskFilter{CoachID: coachID, Limit: clamp(in.Limit, defaultLimit, maxLimit)}
	if in.Status != "" {
		st, ok := model.ParseTaskStatus(in.Status)
		if !ok {
			return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, in.Status)
		}
		f.Statuses = []model.TaskStatus{st}
	}
	id, err := t.clientID(ctx, coachID, in.CompanyName)
	if err != nil {
		return nil, err
	}
	f.ClientID = id
	tasks, err := t.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": nonNil(tasks)}, nil
}

func (t *tools) listUpdates(ctx context.Context, coachID string, input json.RawMessage) (any, error) {
	var in struct {
		CompanyName    string `json:"company_name"`
		Classification string `json:"classification"`
		Days           int    `json:"days"`
		Limit          int    `json:"limit"`
	}
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	f := model.UpdateFilter{
		CoachID: coachID,
		Since:   t.now().UTC().AddDate(0, 0, -clamp(in.Days, defaultDays, maxDays)),
		Limit:   clamp(in.Limit, defaultLimit, maxLimit),
	}
	if in.Classification != "" {
		c, ok := model.ParseClassification(in.Classification)
		if !ok {
			return nil, fmt.Errorf("%w: classification %q", ErrInvalidInput, in.Classification)
		}
		f.Classification = c
	}
	id, err := t.clientID(ctx, coachID, in.CompanyName)
	if err != nil {
		return nil, err
	}
	f.ClientID = id
	updates, err := t.store.ListUpdates(ctx, f)
	if err != nil {
		return nil, err
	}
	return map[string]any{"updates": nonNil(updates)}, nil
}

func (t *tools) getSynthesis(ctx context.Context, coachID string, input json.RawMessage) (any, error) {
	var in struct {
		Date string `json:"date"`
	}
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	date := model.DateOf(t.now())
	if in.Date != "" {
		d, err := model.ParseDate(in.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		date = d
	}
	ds, err := t.store.GetSynthesis(ctx, coachID, date)
	if errors.Is(err, model.ErrNotFound) {
		return map[string]any{"found": false, "date": date}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"found": true, "synthesis": ds}, nil
}

func (t *tools) listReflections(ctx context.Context, coachID string, input json.RawMessage) (any, error) {
	var in struct {
		CompanyName string `json:"company_name"`
		Limit       int    `json:"limit"`
	}
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	id, err := t.clientID(ctx, coachID, in.CompanyName)
	if err != nil {
		return nil, err
	}
	refs, err := t.store.ListReflections(ctx, model.ReflectionFilter{
		CoachID:  coachID,
		ClientID: id,
		Limit:    clamp(in.Limit, defaultLimit, maxLimit),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"reflections": nonNil(refs)}, nil
}

func (t *tools) searchNotes(ctx context.Context, coachID string, input json.RawMessage) (any, error) {
	var in struct {
		Query       string `json:"query"`
		CompanyName string `json:"company_name"`
		Limit       int    `json:"limit"`
	}
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	id, err := t.clientID(ctx, coachID, in.CompanyName)
	if err != nil {
		return nil, err
	}
	notes, err := t.store.SearchNotes(ctx, model.NoteFilter{
		CoachID:  coachID,
		ClientID: id,
		Query:    strings.TrimSpace(in.Query),
		Limit:    clamp(in.Limit, defaultLimit, maxLimit),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"notes": nonNil(notes)}, nil
}

// Stats summarizes a coach's portfolio.
type Stats struct {
	Clients           int            `json:"clients"`
	ClientsByStatus   map[string]int `json:"clients_by_status"`
	AverageEngagement float64        `json:"average_engagement"`
	OpenTasks         int            `json:"open_tasks"`
	OverdueTasks      int            `json:"overdue_tasks"`
	UpdatesLast7Days  int            `json:"updates_last_7_days"`
	BlockersLast7Days int            `json:"blockers_last_7_days"`
}

func (t *tools) stats(ctx context.Context, coachID string, _ json.RawMessage) (any, error) {
	clients, err := t.store.ListClients(ctx, coachID, "")
	if err != nil {
		return nil, err
	}
	tasks, err := t.store.ListTasks(ctx, model.TaskFilter{CoachID: coachID, Statuses: model.OpenTaskStatuses})
	if err != nil {
		return nil, err
	}
	now := t.now().UTC()
	updates, err := t.store.ListUpdates(ctx, model.UpdateFilter{CoachID: coachID, Since: now.AddDate(0, 0, -statsWindowDays)})
	if err != nil {
		return nil, err
	}

	s := Stats{Clients: len(clients), ClientsByStatus: map[string]int{}}
	total := 0
	for _, c := range clients {
		s.ClientsByStatus[string(c.Status)]++
		total += c.EngagementScore
	}
	if len(clients) > 0 {
		s.AverageEngagement = float64(total) / float64(len(clients))
	}
	today := model.DateOf(now)
	for _, task := range tasks {
		s.OpenTasks++
		if !task.DueDate.IsZero() && task.DueDate < today {
			s.OverdueTasks++
		}
	}
	s.UpdatesLast7Days = len(updates)
	for _, u := range updates {
		if u.Classification == model.ClassBlocker {
			s.BlockersLast7Days++
		}
	}
	return s, nil
}

// nonNil keeps empty results encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
