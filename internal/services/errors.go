package services

import (
	"errors"
	"fmt"
	"time"
)

// ErrPayloadTooLarge marks content the completion backend refused for size.
// At chunk level it is skipped; at request level it becomes a 413.
var ErrPayloadTooLarge = errors.New("payload too large")

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// RateLimitError is raised by the local throttle or an upstream 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	Upstream   bool
}

func (e *RateLimitError) Error() string { return e.Message }

// RetryAfterSeconds rounds up, never below one second.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// UpstreamError is any completion failure that is not a size or rate problem.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s completion failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
