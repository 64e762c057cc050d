package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"medichat-backend/internal/bridge"
	"medichat-backend/internal/models"
	"medichat-backend/internal/services"
)

// assistantClient is the slice of the bridge client the handlers use.
type assistantClient interface {
	Chat(ctx context.Context, message string) (string, error)
	AnalyzeSymptoms(ctx context.Context, symptoms string, age int, gender string) (string, error)
	ClearHistory(ctx context.Context) (string, error)
	Summary(ctx context.Context) (string, error)
	Greeting(ctx context.Context, name string) (string, error)
	ServerInfo(ctx context.Context) (string, error)
	State() bridge.State
	Ready() bool
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		upstreamErr   *services.UpstreamError
		connErr       *bridge.ConnectionError
		timeoutErr    *bridge.TimeoutError
		toolErr       *bridge.ToolError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFoundErr.Message, r))
	case errors.As(err, &connErr):
		writeJSON(w, http.StatusServiceUnavailable, errorResp("ASSISTANT_UNAVAILABLE", "The assistant is not available right now", r))
	case errors.As(err, &timeoutErr):
		writeJSON(w, http.StatusGatewayTimeout, errorResp("ASSISTANT_TIMEOUT", "The assistant took too long to respond", r))
	case errors.As(err, &toolErr):
		writeJSON(w, http.StatusBadGateway, errorResp("TOOL_ERROR", toolErr.Message, r))
	case errors.As(err, &upstreamErr):
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", upstreamErr.Message, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// userFacingError turns a bridge failure into text safe to show in the
// conversation itself. Tool errors already carry readable messages.
func userFacingError(err error) string {
	var (
		connErr    *bridge.ConnectionError
		timeoutErr *bridge.TimeoutError
		toolErr    *bridge.ToolError
	)
	switch {
	case errors.As(err, &connErr):
		return "The assistant is unavailable right now. Please try again later."
	case errors.As(err, &timeoutErr):
		return "The assistant took too long to respond. Please try again."
	case errors.As(err, &toolErr):
		return toolErr.Message
	default:
		return "Something went wrong. Please try again."
	}
}
