package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"medichat-backend/internal/history"
	"medichat-backend/internal/middleware"
	"medichat-backend/internal/models"
)

type ConversationHandler struct {
	assistant assistantClient
	history   *history.Store
}

func NewConversationHandler(assistant assistantClient, store *history.Store) *ConversationHandler {
	return &ConversationHandler{assistant: assistant, history: store}
}

// Summary asks the assistant to summarize the conversation and posts
// the result into the session's log.
func (h *ConversationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	summary, err := h.assistant.Summary(r.Context())
	if err != nil {
		log.Printf("conversation: summary failed for session %s: %v", sessionID, err)
		h.history.Append(sessionID, models.ChatMessage{Role: models.RoleError, Content: userFacingError(err)})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.history.Append(sessionID, models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: "📋 **Conversation Summary:**\n\n" + summary,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Clear resets both sides of the conversation: the subprocess context
// and the web session's log. The local log is cleared even when the
// subprocess call fails, so the page always comes back empty.
func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	if _, err := h.assistant.ClearHistory(r.Context()); err != nil {
		log.Printf("conversation: subprocess clear failed for session %s: %v", sessionID, err)
	}
	h.history.Clear(sessionID)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Greeting returns the personalized patient greeting resource.
func (h *ConversationHandler) Greeting(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		name = "there"
	}

	text, err := h.assistant.Greeting(r.Context(), name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"greeting": text})
}

// Help lists what the assistant can do.
func (h *ConversationHandler) Help(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Medical Assistant help",
		"usage": []string{
			"Send a message to chat with the assistant",
			`Start a message with "symptoms:" or "analyze:" for symptom analysis`,
			"POST /analyze with symptoms, age and gender for a structured analysis",
			"Use the Summarize and Clear buttons to manage the conversation",
		},
		"disclaimer": "General information only, not medical diagnosis.",
	})
}

// ServerInfo returns the tool subprocess's self-description resource.
func (h *ConversationHandler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	text, err := h.assistant.ServerInfo(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"info": text})
}
