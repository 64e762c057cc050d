package handlers

import (
	"net/http"

	"medichat-backend/internal/models"
)

type HealthHandler struct {
	assistant assistantClient
}

func NewHealthHandler(assistant assistantClient) *HealthHandler {
	return &HealthHandler{assistant: assistant}
}

// Health reports liveness plus whether the tool subprocess is usable.
// A dead bridge answers 503 so load balancers stop routing chat here.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.assistant.State()

	resp := models.HealthResponse{
		Status:        "ok",
		ToolConnected: h.assistant.Ready(),
		Message:       "bridge " + state.String(),
	}

	status := http.StatusOK
	if !resp.ToolConnected {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
