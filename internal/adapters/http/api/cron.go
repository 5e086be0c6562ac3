package api

import (
	"net/http"
)

// CronHandler exposes the batch jobs to an external scheduler.
type CronHandler struct {
	scorer      Recomputer
	synthesizer Synthesizer
}

// NewCronHandler creates a cron handler.
func NewCronHandler(scorer Recomputer, synthesizer Synthesizer) *CronHandler {
	return &CronHandler{scorer: scorer, synthesizer: synthesizer}
}

// HandleEngagement handles GET /cron/engagement-score.
func (h *CronHandler) HandleEngagement(w http.ResponseWriter, r *http.Request) {
	res, err := h.scorer.RecomputeAll(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, "cron.engagement", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSynthesis handles GET /cron/daily-synthesis.
func (h *CronHandler) HandleSynthesis(w http.ResponseWriter, r *http.Request) {
	res, err := h.synthesizer.SynthesizeAll(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, "cron.synthesis", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
