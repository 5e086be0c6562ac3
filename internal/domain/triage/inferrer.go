package triage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/coachd/internal/domain/chat"
	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/pkg/logger"
	"github.com/okian/coachd/pkg/metrics"
)

const unknownAnswer = "UNKNOWN"

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_\-&.]+)`)

// ClientLister reads a coach's clients.
type ClientLister interface {
	ListClients(ctx context.Context, coachID string, status model.ClientStatus) ([]model.Client, error)
}

// Inferrer resolves which of a coach's clients a message is about.
type Inferrer struct {
	store ClientLister
	llm   chat.Client
	settings
}

// NewInferrer creates an inferrer that falls back to the fast model.
func NewInferrer(store ClientLister, llm chat.Client, opts ...Option) *Inferrer {
	return &Inferrer{store: store, llm: llm, settings: newSettings("inferrer", opts)}
}

// Infer returns the client id the text refers to, or "" when none matches.
// Hashtags are tried first; the model is only asked when no hashtag resolves.
// Only store failures are returned as errors.
func (i *Inferrer) Infer(ctx context.Context, coachID, text string) (string, error) {
	clients, err := i.store.ListClients(ctx, coachID, "")
	if err != nil {
		return "", fmt.Errorf("list clients: %w", err)
	}
	if len(clients) == 0 {
		metrics.RecordClientInference("none")
		return "", nil
	}

	if id, ok := matchHashtags(text, clients); ok {
		metrics.RecordClientInference("hashtag")
		return id, nil
	}
	if strings.TrimSpace(text) == "" {
		metrics.RecordClientInference("none")
		return "", nil
	}

	id := i.askModel(ctx, text, clients)
	if id == "" {
		metrics.RecordClientInference("none")
		return "", nil
	}
	metrics.RecordClientInference("llm")
	return id, nil
}

func (i *Inferrer) askModel(ctx context.Context, text string, clients []model.Client) string {
	names := make([]string, len(clients))
	for n, c := range clients {
		names[n] = "- " + c.CompanyName
	}

	resp, err := i.llm.Complete(ctx, chat.Request{
		Model:     i.fastModel,
		MaxTokens: i.fastMaxTokens,
		System:    fmt.Sprintf(inferPrompt, strings.Join(names, "\n")),
		Messages:  []chat.Message{chat.UserText(text)},
	})
	if err != nil {
		i.logger.Warn(ctx, "client inference fell back after model error", logger.Error(err))
		return ""
	}

	answer := cleanAnswer(resp.Text())
	if answer == "" || strings.EqualFold(answer, unknownAnswer) {
		return ""
	}
	for _, c := range clients {
		if strings.EqualFold(strings.TrimSpace(c.CompanyName), answer) {
			return c.ID
		}
	}
	i.logger.Debug(ctx, "model named an unknown company", logger.String("answer", answer))
	return ""
}

// matchHashtags tries each #token in order of appearance: first an exact
// match against company names with spaces removed, then containment.
func matchHashtags(text string, clients []model.Client) (string, bool) {
	tags := hashtagPattern.FindAllStringSubmatch(text, -1)
	if len(tags) == 0 {
		return "", false
	}
	names := make([]string, len(clients))
	for n, c := range clients {
		names[n] = compact(c.CompanyName)
	}

	for _, tag := range tags {
		token := strings.ToLower(strings.TrimRight(tag[1], ".-"))
		if token == "" {
			continue
		}
		for n, name := range names {
			if name == token {
				return clients[n].ID, true
			}
		}
		for n, name := range names {
			if name != "" && strings.Contains(name, token) {
				return clients[n].ID, true
			}
		}
	}
	return "", false
}

// compact lower-cases s and removes all whitespace.
func compact(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
