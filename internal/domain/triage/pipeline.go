package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/internal/domain/types"
	"github.com/okian/coachd/pkg/logger"
)

// UpdateStore reads and enriches inbound updates.
type UpdateStore interface {
	GetUpdate(ctx context.Context, id string) (model.Update, error)
	UpdateTriage(ctx context.Context, id string, patch model.TriagePatch) error
}

// Pipeline runs the triage steps an update still needs.
type Pipeline struct {
	store      UpdateStore
	classifier *Classifier
	inferrer   *Inferrer
	extractor  *Extractor
	settings
}

// NewPipeline wires the triage components over store.
func NewPipeline(store UpdateStore, c *Classifier, i *Inferrer, e *Extractor, opts ...Option) *Pipeline {
	return &Pipeline{
		store:      store,
		classifier: c,
		inferrer:   i,
		extractor:  e,
		settings:   newSettings("triage", opts),
	}
}

// Process classifies, attributes and extracts actions from one update.
// Fields that are already set are kept. Tasks are inserted before the update
// is patched, so a failed patch never loses extracted work.
func (p *Pipeline) Process(ctx context.Context, updateID string) (types.TriageResult, error) {
	start := time.Now()
	u, err := p.store.GetUpdate(ctx, updateID)
	if err != nil {
		return types.TriageResult{}, fmt.Errorf("load update: %w", err)
	}
	text := u.Text()
	res := types.TriageResult{UpdateID: u.ID, ClientID: u.ClientID, Classification: string(u.Classification)}
	var patch model.TriagePatch

	if u.Classification == "" {
		class := p.classifier.Classify(ctx, text)
		patch.Classification = &class
		res.Classification = string(class)
	}

	if u.ClientID == "" {
		clientID, err := p.inferrer.Infer(ctx, u.CoachID, text)
		if err != nil {
			return res, fmt.Errorf("infer client: %w", err)
		}
		if clientID != "" {
			patch.ClientID = &clientID
			res.ClientID = clientID
		}
	}

	if len(u.ActionItems) == 0 {
		items := p.extractor.Extract(ctx, text)
		res.ActionItems = len(items)
		if len(items) > 0 {
			if err := p.extractor.Materialize(ctx, u.CoachID, res.ClientID, items); err != nil {
				return res, err
			}
			res.TasksCreated = len(items)
			patch.ActionItems = &items
		}
	} else {
		res.ActionItems = len(u.ActionItems)
	}

	if err := p.store.UpdateTriage(ctx, u.ID, patch); err != nil {
		return res, fmt.Errorf("store triage: %w", err)
	}
	p.logger.Info(ctx, "update triaged",
		logger.String("update_id", u.ID),
		logger.String("classification", res.Classification),
		logger.String("client_id", res.ClientID),
		logger.Int("tasks_created", res.TasksCreated),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}
