package tts

import (
	"fmt"
)

// StatusError is a non-2xx response from an HTTP speech API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// HTTPStatus exposes the status code to IsRetryable.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// ResponseShapeError means the provider answered successfully but the
// response did not contain an audio payload. It is never retried.
type ResponseShapeError struct {
	Provider string
	Field    string
	Err      error
}

func (e *ResponseShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s response has no usable %s: %v", e.Provider, e.Field, e.Err)
	}
	return fmt.Sprintf("%s response has no usable %s", e.Provider, e.Field)
}

func (e *ResponseShapeError) Unwrap() error { return e.Err }

// RetryError is returned after every attempt failed with a retryable error.
// It unwraps to the last error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }
