package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"medichat-backend/internal/bridge"
	"medichat-backend/internal/history"
	"medichat-backend/internal/middleware"
	"medichat-backend/internal/models"
)

// stubAssistant satisfies assistantClient with canned behavior.
type stubAssistant struct {
	chatReply    string
	analysis     string
	summary      string
	err          error
	state        bridge.State
	lastSymptoms string
	lastAge      int
	lastGender   string
}

func (s *stubAssistant) Chat(ctx context.Context, message string) (string, error) {
	return s.chatReply, s.err
}

func (s *stubAssistant) AnalyzeSymptoms(ctx context.Context, symptoms string, age int, gender string) (string, error) {
	s.lastSymptoms, s.lastAge, s.lastGender = symptoms, age, gender
	return s.analysis, s.err
}

func (s *stubAssistant) ClearHistory(ctx context.Context) (string, error) {
	return "cleared", s.err
}

func (s *stubAssistant) Summary(ctx context.Context) (string, error) {
	return s.summary, s.err
}

func (s *stubAssistant) Greeting(ctx context.Context, name string) (string, error) {
	return "Hello " + name + "!", s.err
}

func (s *stubAssistant) ServerInfo(ctx context.Context) (string, error) {
	return "server info", s.err
}

func (s *stubAssistant) State() bridge.State { return s.state }
func (s *stubAssistant) Ready() bool         { return s.state == bridge.StateReady }

func withSession(r *http.Request, sessionID uuid.UUID) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.SessionIDKey, sessionID)
	return r.WithContext(ctx)
}

func jsonRequest(t *testing.T, method, path string, body interface{}, sessionID uuid.UUID) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return withSession(req, sessionID)
}

// ─── API Chat ───

func TestAPIChatSuccess(t *testing.T) {
	store := history.NewStore(0)
	assistant := &stubAssistant{chatReply: "Drink fluids and rest.", state: bridge.StateReady}
	h := NewAPIHandler(assistant, store)
	sessionID := uuid.New()

	rr := httptest.NewRecorder()
	h.Chat(rr, jsonRequest(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{Message: "How do I treat a cold?"}, sessionID))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.ChatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.Response != "Drink fluids and rest." {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if resp.Action != "chat" {
		t.Errorf("Expected chat action, got %q", resp.Action)
	}

	msgs := store.Messages(sessionID)
	if len(msgs) != 2 || msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("Expected user+assistant messages in history, got %+v", msgs)
	}
}

func TestAPIChatSymptomsPrefixRoutesToAnalysis(t *testing.T) {
	assistant := &stubAssistant{analysis: "Likely viral.", state: bridge.StateReady}
	h := NewAPIHandler(assistant, history.NewStore(0))

	rr := httptest.NewRecorder()
	h.Chat(rr, jsonRequest(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{Message: "symptoms: fever and chills"}, uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if assistant.lastSymptoms != "fever and chills" {
		t.Errorf("Expected symptoms extracted from prefix, got %q", assistant.lastSymptoms)
	}

	var resp models.ChatResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Action != "analyze_symptoms" {
		t.Errorf("Expected analyze_symptoms action, got %q", resp.Action)
	}
}

func TestAPIChatEmptyMessage(t *testing.T) {
	h := NewAPIHandler(&stubAssistant{state: bridge.StateReady}, history.NewStore(0))

	rr := httptest.NewRecorder()
	h.Chat(rr, jsonRequest(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{Message: "   "}, uuid.New()))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
}

func TestAPIChatErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bridge down", &bridge.ConnectionError{Reason: "subprocess exited"}, http.StatusServiceUnavailable, "ASSISTANT_UNAVAILABLE"},
		{"timeout", &bridge.TimeoutError{Method: "tools/call"}, http.StatusGatewayTimeout, "ASSISTANT_TIMEOUT"},
		{"tool failure", &bridge.ToolError{Message: "Error generating response: rate limit"}, http.StatusBadGateway, "TOOL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAPIHandler(&stubAssistant{err: tc.err, state: bridge.StateReady}, history.NewStore(0))

			rr := httptest.NewRecorder()
			h.Chat(rr, jsonRequest(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{Message: "hello"}, uuid.New()))

			if rr.Code != tc.status {
				t.Errorf("Expected %d, got %d", tc.status, rr.Code)
			}
			var resp models.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if resp.Error.Code != tc.code {
				t.Errorf("Expected code %q, got %q", tc.code, resp.Error.Code)
			}
		})
	}
}

// ─── API Analyze ───

func TestAPIAnalyzePassesPatientDetails(t *testing.T) {
	assistant := &stubAssistant{analysis: "See a doctor.", state: bridge.StateReady}
	h := NewAPIHandler(assistant, history.NewStore(0))

	rr := httptest.NewRecorder()
	h.Analyze(rr, jsonRequest(t, http.MethodPost, "/api/v1/analyze",
		models.AnalyzeRequest{Symptoms: "chest pain", Age: 58, Gender: "male"}, uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if assistant.lastSymptoms != "chest pain" || assistant.lastAge != 58 || assistant.lastGender != "male" {
		t.Errorf("Patient details not forwarded: %q %d %q", assistant.lastSymptoms, assistant.lastAge, assistant.lastGender)
	}
}

func TestAPIAnalyzeMissingSymptoms(t *testing.T) {
	h := NewAPIHandler(&stubAssistant{state: bridge.StateReady}, history.NewStore(0))

	rr := httptest.NewRecorder()
	h.Analyze(rr, jsonRequest(t, http.MethodPost, "/api/v1/analyze", models.AnalyzeRequest{}, uuid.New()))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
	var resp models.ErrorResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Error.Fields["symptoms"] == "" {
		t.Errorf("Expected symptoms field error, got %+v", resp.Error)
	}
}

// ─── Chat form ───

func formRequest(path, message string, sessionID uuid.UUID) *http.Request {
	form := url.Values{"message": {message}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withSession(req, sessionID)
}

func TestSendRecordsBothSides(t *testing.T) {
	store := history.NewStore(0)
	auth := middleware.NewSessionAuth("test-secret")
	h := NewChatHandler(&stubAssistant{chatReply: "Hello!", state: bridge.StateReady}, store, auth)
	sessionID := uuid.New()

	rr := httptest.NewRecorder()
	h.Send(rr, formRequest("/chat", "hi there", sessionID))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect, got %d", rr.Code)
	}
	msgs := store.Messages(sessionID)
	if len(msgs) != 2 || msgs[1].Content != "Hello!" {
		t.Errorf("Unexpected history: %+v", msgs)
	}
}

func TestSendFailureBecomesErrorMessage(t *testing.T) {
	store := history.NewStore(0)
	auth := middleware.NewSessionAuth("test-secret")
	h := NewChatHandler(&stubAssistant{err: &bridge.TimeoutError{Method: "tools/call"}, state: bridge.StateReady}, store, auth)
	sessionID := uuid.New()

	rr := httptest.NewRecorder()
	h.Send(rr, formRequest("/chat", "hi there", sessionID))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect even on failure, got %d", rr.Code)
	}
	msgs := store.Messages(sessionID)
	if len(msgs) != 2 || msgs[1].Role != models.RoleError {
		t.Fatalf("Expected error message in history, got %+v", msgs)
	}
	if !strings.Contains(msgs[1].Content, "too long") {
		t.Errorf("Expected timeout wording, got %q", msgs[1].Content)
	}
}

func TestPageRenders(t *testing.T) {
	store := history.NewStore(0)
	auth := middleware.NewSessionAuth("test-secret")
	h := NewChatHandler(&stubAssistant{state: bridge.StateReady}, store, auth)

	rr := httptest.NewRecorder()
	h.Page(rr, withSession(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Medical Assistant") || !strings.Contains(body, "symptoms:") {
		t.Errorf("Page missing expected content")
	}
}

// ─── Conversation ops ───

func TestSummaryAppendsToHistory(t *testing.T) {
	store := history.NewStore(0)
	h := NewConversationHandler(&stubAssistant{summary: "You asked about colds.", state: bridge.StateReady}, store)
	sessionID := uuid.New()

	rr := httptest.NewRecorder()
	h.Summary(rr, withSession(httptest.NewRequest(http.MethodPost, "/conversation/summary", nil), sessionID))

	msgs := store.Messages(sessionID)
	if len(msgs) != 1 || !strings.Contains(msgs[0].Content, "You asked about colds.") {
		t.Errorf("Expected summary in history, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "Conversation Summary") {
		t.Errorf("Expected summary heading, got %q", msgs[0].Content)
	}
}

func TestClearAlwaysClearsLocalHistory(t *testing.T) {
	store := history.NewStore(0)
	sessionID := uuid.New()
	store.Append(sessionID, models.ChatMessage{Role: models.RoleUser, Content: "hello"})

	// Subprocess clear fails, local log must still be wiped.
	h := NewConversationHandler(&stubAssistant{err: &bridge.ConnectionError{Reason: "gone"}}, store)

	rr := httptest.NewRecorder()
	h.Clear(rr, withSession(httptest.NewRequest(http.MethodPost, "/conversation/clear", nil), sessionID))

	if store.Len(sessionID) != 0 {
		t.Errorf("Expected local history cleared, got %d messages", store.Len(sessionID))
	}
}

func TestGreetingEndpoint(t *testing.T) {
	h := NewConversationHandler(&stubAssistant{state: bridge.StateReady}, history.NewStore(0))

	r := chi.NewRouter()
	r.Get("/greeting/{name}", h.Greeting)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, withSession(httptest.NewRequest(http.MethodGet, "/greeting/Alice", nil), uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["greeting"] != "Hello Alice!" {
		t.Errorf("Unexpected greeting %q", resp["greeting"])
	}
}

func TestAnalyzeFormAppendsAnalysis(t *testing.T) {
	store := history.NewStore(0)
	auth := middleware.NewSessionAuth("test-secret")
	assistant := &stubAssistant{analysis: "Likely tension headache.", state: bridge.StateReady}
	h := NewChatHandler(assistant, store, auth)
	sessionID := uuid.New()

	form := url.Values{"symptoms": {"headache"}, "age": {"41"}, "gender": {"female"}}
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	h.Analyze(rr, withSession(req, sessionID))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect, got %d", rr.Code)
	}
	if assistant.lastAge != 41 || assistant.lastGender != "female" {
		t.Errorf("Patient details not forwarded: %d %q", assistant.lastAge, assistant.lastGender)
	}
	msgs := store.Messages(sessionID)
	if len(msgs) != 2 || !strings.Contains(msgs[1].Content, "Medical Analysis") {
		t.Errorf("Expected analysis in history, got %+v", msgs)
	}
}

// ─── Health ───

func TestHealthReflectsBridgeState(t *testing.T) {
	tests := []struct {
		name      string
		state     bridge.State
		httpCode  int
		status    string
		connected bool
	}{
		{"ready", bridge.StateReady, http.StatusOK, "ok", true},
		{"failed", bridge.StateFailed, http.StatusServiceUnavailable, "degraded", false},
		{"closed", bridge.StateClosed, http.StatusServiceUnavailable, "degraded", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(&stubAssistant{state: tc.state})

			rr := httptest.NewRecorder()
			h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tc.httpCode {
				t.Fatalf("Expected %d, got %d", tc.httpCode, rr.Code)
			}
			var resp models.HealthResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode health response: %v", err)
			}
			if resp.Status != tc.status || resp.ToolConnected != tc.connected {
				t.Errorf("Unexpected health response: %+v", resp)
			}
		})
	}
}
