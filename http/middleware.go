// Package http exposes a wallet session over HTTP: stdlib handlers, a
// middleware that requires a connected wallet, a remote prompt modal and a
// client for the API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/0xWizop/incubator-sub002"
	"github.com/0xWizop/incubator-sub002/encoding"
)

// SessionHeader carries the base64 JSON projection on guarded responses.
const SessionHeader = "X-Wallet-Session"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// WalletContextKey is the context key for the wallet a guarded request runs as.
const WalletContextKey = contextKey("walletsession_wallet")

// WalletFromContext returns the wallet stored by the require-connected middleware.
func WalletFromContext(ctx context.Context) (walletsession.Wallet, bool) {
	w, ok := ctx.Value(WalletContextKey).(walletsession.Wallet)
	return w, ok
}

// NewRequireConnectedMiddleware returns middleware that connects the session
// before the wrapped handler runs. A locked session opens (or joins) a
// connect episode and the request waits for it; failures answer 401.
func NewRequireConnectedMiddleware(session *walletsession.Session, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflight never needs a wallet.
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			wallet, err := session.Connect(r.Context())
			if err != nil {
				logger.Info("request rejected", "path", r.URL.Path, "error", err)
				writeError(w, logger, err)
				return
			}

			if header, err := encoding.EncodeProjection(session.Projection()); err == nil {
				w.Header().Set(SessionHeader, header)
			} else {
				logger.Warn("failed to encode session header", "error", err)
			}

			ctx := context.WithValue(r.Context(), WalletContextKey, wallet)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequestLogger returns middleware that logs one line per request.
func NewRequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
