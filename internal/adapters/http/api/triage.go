package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/coachd/internal/adapters/mq/queue"
	"github.com/okian/coachd/internal/domain/dedupe"
	"github.com/okian/coachd/pkg/metrics"
)

// Triage outcomes reported in the response body.
const (
	triageAccepted  = "accepted"
	triageDuplicate = "duplicate"
)

// TriageHandler queues updates for asynchronous enrichment.
type TriageHandler struct {
	updates UpdateLookup
	deduper dedupe.Deduper
	queue   Enqueuer
	now     func() time.Time
}

// NewTriageHandler creates a triage handler.
func NewTriageHandler(updates UpdateLookup, d dedupe.Deduper, q Enqueuer) *TriageHandler {
	return &TriageHandler{updates: updates, deduper: d, queue: q, now: time.Now}
}

type triageResponse struct {
	UpdateID string `json:"update_id"`
	Status   string `json:"status"`
}

// HandleTriage handles POST /api/updates/{id}/triage.
func (h *TriageHandler) HandleTriage(w http.ResponseWriter, r *http.Request) {
	const op = "api.triage"
	ctx := r.Context()

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if h.updates != nil {
		if _, err := h.updates.GetUpdate(ctx, id); err != nil {
			writeFailure(ctx, w, op, err)
			return
		}
	}

	if h.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordTriageDuplicate()
		writeJSON(w, http.StatusOK, triageResponse{UpdateID: id, Status: triageDuplicate})
		return
	}

	if err := h.queue.Enqueue(ctx, queue.Job{UpdateID: id, EnqueuedAt: h.now()}); err != nil {
		h.deduper.Unrecord(ctx, id)
		switch {
		case errors.Is(err, queue.ErrFull):
			writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		case errors.Is(err, queue.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrBackpressure, err))
		default:
			writeFailure(ctx, w, op, err)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, triageResponse{UpdateID: id, Status: triageAccepted})
}
