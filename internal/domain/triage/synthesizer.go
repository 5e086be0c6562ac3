package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/internal/domain/types"
	"github.com/okian/coachd/pkg/logger"
	"github.com/okian/coachd/pkg/metrics"
)

const unassigned = "Unassigned"

// SynthesisStore is the data access the synthesizer needs.
type SynthesisStore interface {
	ClientLister
	ListCoachIDs(ctx context.Context) ([]string, error)
	ListUpdates(ctx context.Context, f model.UpdateFilter) ([]model.Update, error)
	ListReflections(ctx context.Context, f model.ReflectionFilter) ([]model.Reflection, error)
	ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error)
	UpsertSynthesis(ctx context.Context, ds model.DailySynthesis) error
}

// Synthesizer writes the daily briefing for a coach.
type Synthesizer struct {
	store SynthesisStore
	llm   chat.Client
	settings
}

// NewSynthesizer creates a synthesizer backed by the smart model.
func NewSynthesizer(store SynthesisStore, llm chat.Client, opts ...Option) *Synthesizer {
	return &Synthesizer{store: store, llm: llm, settings: newSettings("synthesizer", opts)}
}

// dayInput is everything gathered for one coach and day.
type dayInput struct {
	date        model.Date
	companies   map[string]string
	updates     []model.Update
	reflections []model.Reflection
	tasks       []model.Task
}

// Synthesize builds today's briefing (UTC) for coachID, stores it keyed on
// (coach, date) and returns the narrative. A rerun on the same day overwrites.
func (s *Synthesizer) Synthesize(ctx context.Context, coachID string) (string, error) {
	in, err := s.gather(ctx, coachID)
	if err != nil {
		metrics.RecordSynthesis("error")
		return "", err
	}

	resp, err := s.llm.Complete(ctx, chat.Request{
		Model:     s.smartModel,
		MaxTokens: s.smartMaxTokens,
		System:    synthesisSystem,
		Messages:  []chat.Message{chat.UserText(renderPrompt(in))},
	})
	if err != nil {
		metrics.RecordSynthesis("error")
		return "", fmt.Errorf("synthesis completion: %w", err)
	}
	content := strings.TrimSpace(resp.Text())
	if content == "" {
		metrics.RecordSynthesis("error")
		return "", fmt.Errorf("synthesis completion: %w", chat.ErrEmptyResponse)
	}

	ds := model.DailySynthesis{
		CoachID:          coachID,
		Date:             in.date,
		Content:          content,
		Summary:          truncateRunes(content, summaryRunes),
		ClientHighlights: highlights(in.updates, in.companies),
		ActionItems:      openItems(in.tasks),
	}
	if err := s.store.UpsertSynthesis(ctx, ds); err != nil {
		metrics.RecordSynthesis("error")
		return "", fmt.Errorf("store synthesis: %w", err)
	}
	metrics.RecordSynthesis("ok")
	s.logger.Info(ctx, "daily synthesis stored",
		logger.String("coach_id", coachID),
		logger.String("date", in.date.String()),
		logger.Int("updates", len(in.updates)),
		logger.Int("open_tasks", len(in.tasks)),
	)
	return content, nil
}

// SynthesizeAll runs Synthesize for every coach with clients. Failures are
// logged and counted; only listing coaches is an error.
func (s *Synthesizer) SynthesizeAll(ctx context.Context) (types.BatchResult, error) {
	coaches, err := s.store.ListCoachIDs(ctx)
	if err != nil {
		return types.BatchResult{}, fmt.Errorf("list coaches: %w", err)
	}
	res := types.BatchResult{Total: len(coaches)}
	for _, coachID := range coaches {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.Synthesize(ctx, coachID); err != nil {
			s.logger.Warn(ctx, "daily synthesis skipped", logger.String("coach_id", coachID), logger.Error(err))
			continue
		}
		res.Updated++
	}
	return res, nil
}

func (s *Synthesizer) gather(ctx context.Context, coachID string) (dayInput, error) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	in := dayInput{date: model.DateOf(start), companies: map[string]string{}}

	clients, err := s.store.ListClients(ctx, coachID, "")
	if err != nil {
		return in, fmt.Errorf("list clients: %w", err)
	}
	for _, c := range clients {
		in.companies[c.ID] = c.CompanyName
	}
	if in.updates, err = s.store.ListUpdates(ctx, model.UpdateFilter{CoachID: coachID, Since: start, Until: end, Ascending: true}); err != nil {
		return in, fmt.Errorf("list updates: %w", err)
	}
	if in.reflections, err = s.store.ListReflections(ctx, model.ReflectionFilter{CoachID: coachID, Since: start, Until: end, Ascending: true}); err != nil {
		return in, fmt.Errorf("list reflections: %w", err)
	}
	if in.tasks, err = s.store.ListTasks(ctx, model.TaskFilter{CoachID: coachID, Statuses: model.OpenTaskStatuses}); err != nil {
		return in, fmt.Errorf("list tasks: %w", err)
	}
	return in, nil
}

func (in dayInput) company(clientID string) string {
	if name, ok := in.companies[clientID]; ok && clientID != "" {
		return name
	}
	return unassigned
}

func renderPrompt(in dayInput) string {
	var updates, reflections, tasks []string
	for _, u := range in.updates {
		class := string(u.Classification)
		if class == "" {
			class = "unclassified"
		}
		updates = append(updates, fmt.Sprintf("- [%s] %s (%s): %s",
			u.CreatedAt.UTC().Format("15:04"), in.company(u.ClientID), class, oneLine(u.Text())))
	}
	for _, r := range in.reflections {
		line := fmt.Sprintf("- %s: energy %d/10, accountability %d/10", in.company(r.ClientID), r.EnergyLevel, r.AccountabilityScore)
		if r.GoalProgress != "" {
			line += "; goal progress: " + oneLine(r.GoalProgress)
		}
		if r.Win != "" {
			line += "; win: " + oneLine(r.Win)
		}
		reflections = append(reflections, line)
	}
	for _, t := range in.tasks {
		line := fmt.Sprintf("- [%s] %s (%s, %s)", t.Priority, t.Title, in.company(t.ClientID), t.Status)
		if !t.DueDate.IsZero() {
			line += " due " + t.DueDate.String()
		}
		tasks = append(tasks, line)
	}
	return fmt.Sprintf(synthesisTemplate, in.date, block(updates), block(reflections), block(tasks))
}

func block(lines []string) string {
	if len(lines) == 0 {
		return "None."
	}
	return strings.Join(lines, "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// highlights lists each client seen in the updates once, in order of first
// appearance.
func highlights(updates []model.Update, companies map[string]string) model.Highlights {
	out := model.Highlights{}
	seen := map[string]bool{}
	for _, u := range updates {
		if u.ClientID == "" || seen[u.ClientID] {
			continue
		}
		seen[u.ClientID] = true
		out = append(out, model.Highlight{ClientID: u.ClientID, CompanyName: companies[u.ClientID]})
	}
	return out
}

func openItems(tasks []model.Task) model.ActionItemList {
	out := model.ActionItemList{}
	for _, t := range tasks {
		if t.Status.IsOpen() {
			out = append(out, model.ActionItem{Title: t.Title, Priority: t.Priority})
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
