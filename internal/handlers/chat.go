package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"medichat-backend/internal/history"
	"medichat-backend/internal/intent"
	"medichat-backend/internal/middleware"
	"medichat-backend/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"md": renderMarkdown,
}).ParseFS(templatesFS, "templates/*.html"))

// renderMarkdown converts assistant markdown to HTML for the chat page.
func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

const welcomeMessage = `🏥 Welcome to the Medical Assistant!

I can help you with:
- General health questions
- Symptom analysis (start your message with "symptoms:")
- Health education

⚠️ I provide general information only, not medical diagnosis.`

const analysisDisclaimer = "\n\n⚠️ **Important:** This analysis is for informational purposes only. Please consult a healthcare professional for proper diagnosis."

type ChatHandler struct {
	assistant assistantClient
	history   *history.Store
	auth      *middleware.SessionAuth
}

func NewChatHandler(assistant assistantClient, store *history.Store, auth *middleware.SessionAuth) *ChatHandler {
	return &ChatHandler{
		assistant: assistant,
		history:   store,
		auth:      auth,
	}
}

// Page renders the chat UI with the session's conversation so far.
func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	wsToken, err := h.auth.Token(sessionID)
	if err != nil {
		log.Printf("chat: failed to sign ws token: %v", err)
	}

	data := map[string]interface{}{
		"Welcome":   welcomeMessage,
		"Messages":  h.history.Messages(sessionID),
		"WSToken":   wsToken,
		"Connected": h.assistant.Ready(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "chat.html", data); err != nil {
		log.Printf("chat: failed to render page: %v", err)
	}
}

// Send handles the chat form post: classify the message, run the
// matching tool, record both sides, and bounce back to the page.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid form data", r))
		return
	}

	message := strings.TrimSpace(r.FormValue("message"))
	if message == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	h.history.Append(sessionID, models.ChatMessage{Role: models.RoleUser, Content: message})

	result := intent.Classify(message)

	var reply string
	var err error
	switch result.Action {
	case intent.ActionAnalyzeSymptoms:
		var analysis string
		analysis, err = h.assistant.AnalyzeSymptoms(r.Context(), result.Symptoms, 0, "")
		if err == nil {
			reply = "🏥 **Medical Analysis:**\n\n" + analysis + analysisDisclaimer
		}
	default:
		reply, err = h.assistant.Chat(r.Context(), result.Message)
	}

	if err != nil {
		log.Printf("chat: assistant call failed for session %s: %v", sessionID, err)
		h.history.Append(sessionID, models.ChatMessage{Role: models.RoleError, Content: userFacingError(err)})
	} else {
		h.history.Append(sessionID, models.ChatMessage{Role: models.RoleAssistant, Content: reply})
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Analyze handles the structured symptom form: symptoms plus optional
// age and gender.
func (h *ChatHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid form data", r))
		return
	}

	symptoms := strings.TrimSpace(r.FormValue("symptoms"))
	if symptoms == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	age, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("age")))
	gender := strings.TrimSpace(r.FormValue("gender"))

	sessionID := middleware.GetSessionID(r.Context())
	h.history.Append(sessionID, models.ChatMessage{Role: models.RoleUser, Content: "symptoms: " + symptoms})

	analysis, err := h.assistant.AnalyzeSymptoms(r.Context(), symptoms, age, gender)
	if err != nil {
		log.Printf("chat: symptom analysis failed for session %s: %v", sessionID, err)
		h.history.Append(sessionID, models.ChatMessage{Role: models.RoleError, Content: userFacingError(err)})
	} else {
		h.history.Append(sessionID, models.ChatMessage{
			Role:    models.RoleAssistant,
			Content: "🏥 **Medical Analysis:**\n\n" + analysis + analysisDisclaimer,
		})
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
