// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/coachd/internal/adapters/mq/queue"
	"github.com/okian/coachd/internal/domain/dedupe"
	"github.com/okian/coachd/internal/domain/model"
	"github.com/okian/coachd/internal/domain/types"
	"github.com/okian/coachd/pkg/logger"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Recomputer recomputes every client's engagement score.
type Recomputer interface {
	RecomputeAll(ctx context.Context) (types.BatchResult, error)
}

// Synthesizer writes daily briefings.
type Synthesizer interface {
	Synthesize(ctx context.Context, coachID string) (string, error)
	SynthesizeAll(ctx context.Context) (types.BatchResult, error)
}

// Assistant answers a coach's question.
type Assistant interface {
	Run(ctx context.Context, coachID, message string) (string, error)
}

// Enqueuer accepts triage jobs without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, j queue.Job) error
}

// UpdateLookup checks that an update exists before it is queued.
type UpdateLookup interface {
	GetUpdate(ctx context.Context, id string) (model.Update, error)
}

// Dependencies bundles what the handlers need. Nil collaborators leave
// their routes unregistered.
type Dependencies struct {
	Scorer      Recomputer
	Synthesizer Synthesizer
	Assistant   Assistant
	Updates     UpdateLookup
	Queue       Enqueuer
	Deduper     dedupe.Deduper
	Stats       StatsProvider

	// CronSecret guards /cron/*; APIToken guards /api/*. Empty rejects all.
	CronSecret string
	APIToken   string
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps             Dependencies
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	cronHandler      *CronHandler
	assistantHandler *AssistantHandler
	synthesisHandler *SynthesisHandler
	triageHandler    *TriageHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		deps:             deps,
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps.Stats),
		cronHandler:      NewCronHandler(deps.Scorer, deps.Synthesizer),
		assistantHandler: NewAssistantHandler(deps.Assistant),
		synthesisHandler: NewSynthesisHandler(deps.Synthesizer),
		triageHandler:    NewTriageHandler(deps.Updates, deps.Deduper, deps.Queue),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	cron := func(h http.HandlerFunc) http.HandlerFunc { return BearerAuth(s.deps.CronSecret, h) }
	api := func(h http.HandlerFunc) http.HandlerFunc { return BearerAuth(s.deps.APIToken, h) }

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	if s.deps.Stats != nil {
		mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	}
	if s.deps.Scorer != nil {
		mux.HandleFunc("GET /cron/engagement-score", MetricsMiddleware(cron(s.cronHandler.HandleEngagement), "cron_engagement"))
	}
	if s.deps.Synthesizer != nil {
		mux.HandleFunc("GET /cron/daily-synthesis", MetricsMiddleware(cron(s.cronHandler.HandleSynthesis), "cron_synthesis"))
		mux.HandleFunc("POST /api/synthesis", MetricsMiddleware(api(s.synthesisHandler.HandleSynthesis), "synthesis"))
	}
	if s.deps.Assistant != nil {
		mux.HandleFunc("POST /api/assistant", MetricsMiddleware(api(s.assistantHandler.HandleAssistant), "assistant"))
	}
	if s.deps.Queue != nil && s.deps.Deduper != nil {
		mux.HandleFunc("POST /api/updates/{id}/triage", MetricsMiddleware(api(s.triageHandler.HandleTriage), "triage"))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a handler error to a status, logs server-side failures
// and writes the error body.
func writeFailure(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, context.DeadlineExceeded):
		logger.Get().Named("api").Warn(ctx, "request timed out", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusGatewayTimeout, "timeout", WrapKind(op, ErrInternal, err))
	default:
		logger.Get().Named("api").Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
	}
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return err
	}
	return nil
}
