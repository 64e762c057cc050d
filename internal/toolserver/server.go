// Package toolserver implements the assistant tool subprocess: a
// line-oriented JSON-RPC 2.0 server on stdin/stdout exposing the chat,
// symptom analysis and conversation tools backed by watsonx.ai.
//
// Requests are handled strictly one at a time: read a line, answer a
// line. The client side serializes its traffic the same way, so no
// concurrency control is needed around the conversation state.
package toolserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"medichat-backend/internal/jsonrpc"
	"medichat-backend/internal/models"
	"medichat-backend/internal/services"
)

// contextWindow is how many trailing messages feed the chat prompt.
const contextWindow = 10

// Generator produces text from a prompt. Satisfied by
// services.WatsonxService; faked in tests.
type Generator interface {
	Generate(ctx context.Context, prompt string, params services.GenParams) (string, error)
}

// Info describes the server to clients.
type Info struct {
	Name      string
	Version   string
	ModelID   string
	ProjectID string
}

type Server struct {
	info    Info
	gen     Generator
	history []models.ChatMessage
}

func New(gen Generator, info Info) *Server {
	return &Server{info: info, gen: gen}
}

// Run serves JSON-RPC requests from r, writing responses to w, until r
// is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req jsonrpc.Request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("toolserver: dropping unparseable request: %v", err)
			writeError(w, nil, jsonrpc.CodeParseError, "parse error")
			continue
		}
		if req.IsNotification() {
			// notifications/initialized and friends need no reply.
			continue
		}

		s.handle(ctx, w, &req)
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, w io.Writer, req *jsonrpc.Request) {
	switch req.Method {
	case "initialize":
		writeResult(w, req.ID, jsonrpc.InitializeResult{
			ProtocolVersion: jsonrpc.ProtocolVersion,
			Capabilities: map[string]interface{}{
				"tools":     map[string]interface{}{},
				"resources": map[string]interface{}{},
				"prompts":   map[string]interface{}{},
			},
			ServerInfo: jsonrpc.ClientInfo{Name: s.info.Name, Version: s.info.Version},
		})

	case "ping":
		writeResult(w, req.ID, map[string]interface{}{})

	case "tools/list":
		writeResult(w, req.ID, map[string]interface{}{"tools": toolSchemas()})

	case "tools/call":
		var params jsonrpc.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, req.ID, jsonrpc.CodeInvalidParams, "invalid tools/call params")
			return
		}
		s.handleToolCall(ctx, w, req.ID, params)

	case "resources/read":
		var params jsonrpc.ReadResourceParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, req.ID, jsonrpc.CodeInvalidParams, "invalid resources/read params")
			return
		}
		s.handleResourceRead(w, req.ID, params.URI)

	case "prompts/get":
		var params jsonrpc.GetPromptParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, req.ID, jsonrpc.CodeInvalidParams, "invalid prompts/get params")
			return
		}
		s.handlePromptGet(w, req.ID, params)

	default:
		writeError(w, req.ID, jsonrpc.CodeMethodNotFound, "unknown method "+req.Method)
	}
}

func (s *Server) handleToolCall(ctx context.Context, w io.Writer, id *int64, params jsonrpc.CallToolParams) {
	switch params.Name {
	case "chat_with_watsonx":
		s.handleChat(ctx, w, id, params.Arguments)
	case "analyze_medical_symptoms":
		s.handleAnalyze(ctx, w, id, params.Arguments)
	case "clear_conversation_history":
		s.history = nil
		log.Println("toolserver: conversation history cleared")
		writeToolText(w, id, "Conversation history has been cleared. Starting fresh!")
	case "get_conversation_summary":
		s.handleSummary(ctx, w, id)
	default:
		writeError(w, id, jsonrpc.CodeMethodNotFound, "unknown tool "+params.Name)
	}
}

func (s *Server) handleChat(ctx context.Context, w io.Writer, id *int64, args map[string]interface{}) {
	query := argString(args, "query")
	if query == "" {
		writeError(w, id, jsonrpc.CodeInvalidParams, "query is required")
		return
	}
	maxTokens := argInt(args, "max_tokens", 200)
	temperature := argFloat(args, "temperature", 0.7)

	log.Printf("toolserver: chat query: %.100s", query)
	s.history = append(s.history, models.ChatMessage{Role: models.RoleUser, Content: query})

	decoding := "sample"
	if temperature == 0 {
		decoding = "greedy"
	}
	reply, err := s.gen.Generate(ctx, chatPrompt(s.history, contextWindow), services.GenParams{
		DecodingMethod: decoding,
		MaxNewTokens:   maxTokens,
		Temperature:    temperature,
		TopP:           0.9,
		TopK:           50,
	})
	if err != nil {
		log.Printf("toolserver: chat generation failed: %v", err)
		writeToolError(w, id, fmt.Sprintf("Error generating response: %v", err))
		return
	}

	s.history = append(s.history, models.ChatMessage{Role: models.RoleAssistant, Content: reply})
	writeToolText(w, id, reply)
}

func (s *Server) handleAnalyze(ctx context.Context, w io.Writer, id *int64, args map[string]interface{}) {
	symptoms := argString(args, "symptoms")
	if symptoms == "" {
		writeError(w, id, jsonrpc.CodeInvalidParams, "symptoms is required")
		return
	}
	age := argInt(args, "patient_age", 0)
	gender := argString(args, "patient_gender")

	log.Printf("toolserver: analyzing symptoms: %.50s", symptoms)

	analysis, err := s.gen.Generate(ctx, analysisPrompt(symptoms, age, gender), services.GenParams{
		DecodingMethod: "greedy",
		MaxNewTokens:   300,
		Temperature:    0.3, // Lower temperature for consistent advice
	})
	if err != nil {
		log.Printf("toolserver: symptom analysis failed: %v", err)
		writeToolError(w, id, fmt.Sprintf("Error analyzing symptoms: %v", err))
		return
	}

	writeToolText(w, id, analysis)
}

func (s *Server) handleSummary(ctx context.Context, w io.Writer, id *int64) {
	if len(s.history) == 0 {
		writeToolText(w, id, "No conversation history available.")
		return
	}

	summary, err := s.gen.Generate(ctx, summaryPrompt(s.history), services.GenParams{
		DecodingMethod: "greedy",
		MaxNewTokens:   150,
		Temperature:    0.5,
	})
	if err != nil {
		log.Printf("toolserver: summary generation failed: %v", err)
		writeToolError(w, id, fmt.Sprintf("Error generating summary: %v", err))
		return
	}

	writeToolText(w, id, summary)
}

func (s *Server) handleResourceRead(w io.Writer, id *int64, uri string) {
	const greetingPrefix = "greeting://patient/"

	var text string
	switch {
	case len(uri) > len(greetingPrefix) && uri[:len(greetingPrefix)] == greetingPrefix:
		text = patientGreeting(uri[len(greetingPrefix):])
	case uri == "info://server":
		text = serverInfoText(s.info)
	default:
		writeError(w, id, jsonrpc.CodeInvalidParams, "resource not found: "+uri)
		return
	}

	writeResult(w, id, jsonrpc.ReadResourceResult{
		Contents: []jsonrpc.ResourceContents{{URI: uri, Text: text}},
	})
}

func (s *Server) handlePromptGet(w io.Writer, id *int64, params jsonrpc.GetPromptParams) {
	var text, description string
	switch params.Name {
	case "medical_consultation":
		text = consultationPrompt(params.Arguments["symptoms"], params.Arguments["duration"], params.Arguments["severity"])
		description = "Structured preliminary medical consultation"
	case "health_education":
		text = educationPrompt(params.Arguments["topic"])
		description = "Health education briefing for a topic"
	default:
		writeError(w, id, jsonrpc.CodeInvalidParams, "prompt not found: "+params.Name)
		return
	}

	writeResult(w, id, jsonrpc.GetPromptResult{
		Description: description,
		Messages: []jsonrpc.PromptMessage{
			{Role: models.RoleUser, Content: jsonrpc.Content{Type: "text", Text: text}},
		},
	})
}

// Argument helpers: tool arguments arrive as a generic JSON object.

func argString(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func argFloat(args map[string]interface{}, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}

// Response writers.

func writeResult(w io.Writer, id *int64, result interface{}) {
	data, err := json.Marshal(result)
	if err != nil {
		writeError(w, id, jsonrpc.CodeInternalError, "failed to marshal result")
		return
	}
	jsonrpc.WriteMessage(w, jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: id, Result: data})
}

func writeError(w io.Writer, id *int64, code int, message string) {
	jsonrpc.WriteMessage(w, jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      id,
		Error:   &jsonrpc.Error{Code: code, Message: message},
	})
}

func writeToolText(w io.Writer, id *int64, text string) {
	writeResult(w, id, jsonrpc.CallToolResult{
		Content: []jsonrpc.Content{{Type: "text", Text: text}},
	})
}

// writeToolError reports a domain-level tool failure: the call itself
// succeeded at the protocol level, the tool could not do its job.
func writeToolError(w io.Writer, id *int64, text string) {
	writeResult(w, id, jsonrpc.CallToolResult{
		Content: []jsonrpc.Content{{Type: "text", Text: text}},
		IsError: true,
	})
}

func toolSchemas() []jsonrpc.ToolSchema {
	return []jsonrpc.ToolSchema{
		{
			Name:        "chat_with_watsonx",
			Description: "Generate a conversational response using IBM watsonx.ai",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query":       map[string]interface{}{"type": "string"},
					"max_tokens":  map[string]interface{}{"type": "integer"},
					"temperature": map[string]interface{}{"type": "number"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "analyze_medical_symptoms",
			Description: "Analyze medical symptoms and provide a preliminary assessment",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"symptoms":       map[string]interface{}{"type": "string"},
					"patient_age":    map[string]interface{}{"type": "integer"},
					"patient_gender": map[string]interface{}{"type": "string"},
				},
				"required": []string{"symptoms"},
			},
		},
		{
			Name:        "clear_conversation_history",
			Description: "Clear the conversation history to start fresh",
			InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
		{
			Name:        "get_conversation_summary",
			Description: "Get a summary of the current conversation",
			InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
	}
}
