package cdp

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds.
const (
	KindRateLimit   = "rate_limit"
	KindServerError = "server_error"
	KindAuthError   = "auth_error"
	KindClientError = "client_error"
)

// APIError is a non-2xx CDP response.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
	RequestID  string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("cdp api error [%d]: %s", e.StatusCode, e.Message)
	if e.RequestID != "" {
		msg += fmt.Sprintf(" (request %s)", e.RequestID)
	}
	if e.Method != "" && e.Path != "" {
		msg += fmt.Sprintf(" [%s %s]", e.Method, e.Path)
	}
	return msg
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindServerError
}

func isRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

func classify(status int) (kind, fallback string) {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit, "rate limit exceeded"
	case status >= 500:
		return KindServerError, "server error"
	case status == http.StatusUnauthorized:
		return KindAuthError, "authentication failed, check api credentials"
	case status == http.StatusForbidden:
		return KindAuthError, "insufficient permissions"
	default:
		return KindClientError, "invalid request"
	}
}
