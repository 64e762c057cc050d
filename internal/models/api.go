package models

// WebSocket message envelope pushed to connected browsers.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// MessageEvent is the payload broadcast when a message is appended to a
// session's conversation.
type MessageEvent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
