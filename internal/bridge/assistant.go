package bridge

import (
	"context"
	"encoding/json"

	"medichat-backend/internal/jsonrpc"
)

// Default generation parameters for conversational turns.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 200
)

// callTool invokes a named tool and unwraps the text of its first
// content block, the shape every assistant tool responds with.
func (c *Client) callTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	raw, err := c.Call(ctx, "tools/call", jsonrpc.CallToolParams{Name: name, Arguments: args}, c.CallTimeout)
	if err != nil {
		return "", err
	}

	var result jsonrpc.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", &ToolError{Message: "unexpected response format from tool " + name}
	}
	if len(result.Content) == 0 {
		return "", &ToolError{Message: "empty response from tool " + name}
	}
	text := result.Content[0].Text
	if result.IsError {
		return "", &ToolError{Message: text}
	}
	return text, nil
}

// Chat sends one conversational message to the assistant.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	return c.callTool(ctx, "chat_with_watsonx", map[string]interface{}{
		"query":       message,
		"temperature": defaultTemperature,
		"max_tokens":  defaultMaxTokens,
	})
}

// AnalyzeSymptoms requests a preliminary medical assessment. Age and
// gender are optional; zero values are omitted.
func (c *Client) AnalyzeSymptoms(ctx context.Context, symptoms string, age int, gender string) (string, error) {
	args := map[string]interface{}{"symptoms": symptoms}
	if age > 0 {
		args["patient_age"] = age
	}
	if gender != "" {
		args["patient_gender"] = gender
	}
	return c.callTool(ctx, "analyze_medical_symptoms", args)
}

// ClearHistory resets the subprocess-side conversation context.
func (c *Client) ClearHistory(ctx context.Context) (string, error) {
	return c.callTool(ctx, "clear_conversation_history", nil)
}

// Summary asks the assistant to summarize the conversation so far.
func (c *Client) Summary(ctx context.Context) (string, error) {
	return c.callTool(ctx, "get_conversation_summary", nil)
}

// readResource fetches a resource by URI and unwraps its text.
func (c *Client) readResource(ctx context.Context, uri string) (string, error) {
	raw, err := c.Call(ctx, "resources/read", jsonrpc.ReadResourceParams{URI: uri}, c.CallTimeout)
	if err != nil {
		return "", err
	}

	var result jsonrpc.ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil || len(result.Contents) == 0 {
		return "", &ToolError{Message: "resource not found: " + uri}
	}
	return result.Contents[0].Text, nil
}

// Greeting returns a personalized patient greeting.
func (c *Client) Greeting(ctx context.Context, name string) (string, error) {
	return c.readResource(ctx, "greeting://patient/"+name)
}

// ServerInfo returns the tool subprocess's self-description.
func (c *Client) ServerInfo(ctx context.Context) (string, error) {
	return c.readResource(ctx, "info://server")
}
