package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"medichat-backend/internal/history"
	"medichat-backend/internal/intent"
	"medichat-backend/internal/middleware"
	"medichat-backend/internal/models"
)

// APIHandler exposes the assistant as JSON endpoints for non-browser
// clients.
type APIHandler struct {
	assistant assistantClient
	history   *history.Store
}

func NewAPIHandler(assistant assistantClient, store *history.Store) *APIHandler {
	return &APIHandler{assistant: assistant, history: store}
}

func (h *APIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	h.history.Append(sessionID, models.ChatMessage{Role: models.RoleUser, Content: req.Message})

	result := intent.Classify(req.Message)

	var reply string
	var err error
	switch result.Action {
	case intent.ActionAnalyzeSymptoms:
		reply, err = h.assistant.AnalyzeSymptoms(r.Context(), result.Symptoms, 0, "")
	default:
		reply, err = h.assistant.Chat(r.Context(), result.Message)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.history.Append(sessionID, models.ChatMessage{Role: models.RoleAssistant, Content: reply})
	writeJSON(w, http.StatusOK, models.ChatResponse{
		Response: reply,
		Action:   string(result.Action),
		Success:  true,
	})
}

func (h *APIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Symptoms) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"symptoms": "Symptoms are required"}, r))
		return
	}

	analysis, err := h.assistant.AnalyzeSymptoms(r.Context(), req.Symptoms, req.Age, req.Gender)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AnalyzeResponse{Analysis: analysis, Success: true})
}
