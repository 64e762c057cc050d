package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConnectionError means the tool subprocess is unreachable: it could not
// be spawned, the handshake failed, or the client has been shut down.
// Fatal to this client until the process restarts.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge connection error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("bridge connection error: %s", e.Reason)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError means a call exceeded its deadline. The underlying
// operation keeps running on the dispatcher; its late result is matched
// by request ID and discarded. Recoverable: the caller may issue a new
// call.
type TimeoutError struct {
	Method string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("bridge call %s timed out after %s", e.Method, e.After)
}

// ToolError is a domain-level failure reported by the tool subprocess,
// surfaced verbatim to the user. Recoverable.
type ToolError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *ToolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tool error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("tool error: %s", e.Message)
}
