package services

import "fmt"

// Service error types, mapped to HTTP codes in the handlers.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// UpstreamError means the remote model gateway failed or rate-limited.
// It is surfaced to the user as an error message and never retried
// automatically.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("watsonx.ai error (status %d): %s", e.Status, e.Message)
}
