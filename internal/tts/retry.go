package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const DefaultMaxAttempts = 3

var transientStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var grpcToHTTP = map[codes.Code]int{
	codes.InvalidArgument:   http.StatusBadRequest,
	codes.Unauthenticated:   http.StatusUnauthorized,
	codes.PermissionDenied:  http.StatusForbidden,
	codes.NotFound:          http.StatusNotFound,
	codes.ResourceExhausted: http.StatusTooManyRequests,
	codes.Internal:          http.StatusInternalServerError,
	codes.Unavailable:       http.StatusServiceUnavailable,
	codes.DeadlineExceeded:  http.StatusGatewayTimeout,
}

// RetryPolicy retries a call on transient failures with exponential backoff:
// 2s before the second attempt, 4s before the third, and so on.
type RetryPolicy struct {
	MaxAttempts int

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff is the wait after the given failed attempt (1-based).
func Backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		wait := Backoff(attempt)
		slog.WarnContext(ctx, "synthesis attempt failed, retrying",
			"attempt", attempt, "max_attempts", attempts, "wait", wait, "error", err)
		if serr := sleep(ctx, wait); serr != nil {
			return fmt.Errorf("%w (retry aborted: %w)", lastErr, serr)
		}
	}

	return &RetryError{Attempts: attempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusCode extracts an HTTP-like status from err. It understands any error
// with an HTTPStatus() int method, googleapi errors, and gRPC status errors.
func StatusCode(err error) (int, bool) {
	var hs interface{ HTTPStatus() int }
	if errors.As(err, &hs) {
		return hs.HTTPStatus(), true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	var gs interface{ GRPCStatus() *status.Status }
	if errors.As(err, &gs) {
		if code, ok := grpcToHTTP[gs.GRPCStatus().Code()]; ok {
			return code, true
		}
	}
	return 0, false
}

// IsRetryable reports whether err is worth another attempt: a transient
// status (429, 500, 502, 503, 504) or a transport-level failure.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var shape *ResponseShapeError
	if errors.As(err, &shape) {
		return false
	}
	if code, ok := StatusCode(err); ok {
		return transientStatus[code]
	}
	return isTransportError(err)
}

func isTransportError(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
