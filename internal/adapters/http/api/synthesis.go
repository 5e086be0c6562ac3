package api

import (
	"errors"
	"net/http"
	"strings"
)

// SynthesisHandler generates a coach's daily briefing on demand.
type SynthesisHandler struct {
	synthesizer Synthesizer
}

// NewSynthesisHandler creates a synthesis handler.
func NewSynthesisHandler(s Synthesizer) *SynthesisHandler {
	return &SynthesisHandler{synthesizer: s}
}

type synthesisRequest struct {
	CoachID string `json:"coach_id"`
}

type synthesisResponse struct {
	Content string `json:"content"`
}

// HandleSynthesis handles POST /api/synthesis.
func (h *SynthesisHandler) HandleSynthesis(w http.ResponseWriter, r *http.Request) {
	const op = "api.synthesis"
	var req synthesisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	coachID := strings.TrimSpace(req.CoachID)
	if coachID == "" {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("coach_id is required")))
		return
	}

	content, err := h.synthesizer.Synthesize(r.Context(), coachID)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, synthesisResponse{Content: content})
}
