package models

// Message roles in a conversation. Errors are rendered as their own
// role so a failed turn never crashes the page.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the JSON chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply from the assistant.
type ChatResponse struct {
	Response string `json:"response"`
	Action   string `json:"action"`
	Success  bool   `json:"success"`
}

// AnalyzeRequest is the payload for structured symptom analysis.
type AnalyzeRequest struct {
	Symptoms string `json:"symptoms"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

// AnalyzeResponse carries the preliminary assessment text.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
	Success  bool   `json:"success"`
}

// HealthResponse reports the bridge connection state.
type HealthResponse struct {
	Status        string `json:"status"`
	ToolConnected bool   `json:"tool_connected"`
	Message       string `json:"message"`
}
