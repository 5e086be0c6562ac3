package api

import (
	"errors"
	"net/http"
	"strings"
)

// AssistantHandler serves the coach-facing assistant.
type AssistantHandler struct {
	assistant Assistant
}

// NewAssistantHandler creates an assistant handler.
func NewAssistantHandler(a Assistant) *AssistantHandler {
	return &AssistantHandler{assistant: a}
}

type assistantRequest struct {
	CoachID string `json:"coach_id"`
	Message string `json:"message"`
}

type assistantResponse struct {
	Response string `json:"response"`
}

// HandleAssistant handles POST /api/assistant.
func (h *AssistantHandler) HandleAssistant(w http.ResponseWriter, r *http.Request) {
	const op = "api.assistant"
	var req assistantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	req.CoachID = strings.TrimSpace(req.CoachID)
	req.Message = strings.TrimSpace(req.Message)
	if req.CoachID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("coach_id and message are required")))
		return
	}

	answer, err := h.assistant.Run(r.Context(), req.CoachID, req.Message)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, assistantResponse{Response: answer})
}
