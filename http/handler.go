package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/0xWizop/incubator-sub002"
)

// ConnectionFailedMessage is the only detail exposed for denied, timed-out
// and interrupted unlocks.
const ConnectionFailedMessage = "connection failed, try again"

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("bad request")

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string                  `json:"error"`
	Code  walletsession.ErrorCode `json:"code,omitempty"`
}

// statusFor maps a session error to an HTTP status.
func statusFor(err error) int {
	switch {
	case walletsession.IsConnectionFailure(err):
		return http.StatusUnauthorized
	case errors.Is(err, walletsession.ErrDuplicateWallet),
		errors.Is(err, walletsession.ErrNotUnlocked):
		return http.StatusConflict
	case errors.Is(err, walletsession.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, walletsession.ErrInvalidWallet),
		errors.Is(err, walletsession.ErrUnsupportedChain),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, walletsession.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as JSON. Connection failures carry no code or cause.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error(), Code: walletsession.CodeOf(err)}
	switch {
	case status == http.StatusUnauthorized:
		body = errorResponse{Error: ConnectionFailedMessage}
	case status == http.StatusInternalServerError:
		logger.Error("request failed", "error", err)
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
