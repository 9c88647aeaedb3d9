package genai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FailureKind classifies why a call to the model API failed. Stage processors
// branch on the kind to decide between fallback results and terminal failure.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureServerError FailureKind = "server_error"
	FailureClientError FailureKind = "client_error"
	FailureTimeout     FailureKind = "timeout"
	FailureNetwork     FailureKind = "network_error"
)

// CallError is the terminal failure reported by the client after its retry
// budget is spent (or immediately, for client errors). It never escapes as a
// panic; invokers decide what a failed call means for their job.
type CallError struct {
	Kind       FailureKind
	StatusCode int
	Attempts   int
	RetryAfter time.Duration
	Body       string
	Err        error
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("genai: %s after %d attempt(s)", e.Kind, e.Attempts)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CallError) Unwrap() error { return e.Err }

// Retryable reports whether the failure kind is worth another attempt.
func (e *CallError) Retryable() bool {
	switch e.Kind {
	case FailureRateLimited, FailureServerError, FailureTimeout, FailureNetwork:
		return true
	default:
		return false
	}
}

// IsClientError reports whether err is a terminal 4xx call failure.
func IsClientError(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Kind == FailureClientError
}

func classifyStatus(code int) FailureKind {
	switch {
	case code == http.StatusTooManyRequests:
		return FailureRateLimited
	case code == http.StatusRequestTimeout:
		return FailureTimeout
	case code >= http.StatusInternalServerError:
		return FailureServerError
	default:
		return FailureClientError
	}
}

// classifyTransport maps transport-level errors to a failure kind. Context
// cancellation is passed through untouched so callers can tell shutdown from
// provider trouble.
func classifyTransport(err error) (FailureKind, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout, true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return FailureTimeout, true
	}
	return FailureNetwork, true
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}
