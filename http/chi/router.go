// Package chi provides a thin adapter that mounts the wallet session API on
// a chi router. Handlers and error mapping live in the http package.
package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpws "github.com/0xWizop/incubator-sub002/http"
)

// NewRouter returns a chi router serving server's endpoints. Extra
// middlewares run after request-id and panic recovery.
func NewRouter(server *httpws.Server, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(middlewares...)
	Mount(r, server)
	return r
}

// Mount registers server's endpoints on r.
func Mount(r chi.Router, server *httpws.Server) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", server.Status)
		r.Post("/connect", server.Connect)
		r.Post("/lock", server.Lock)
		r.Post("/signout", server.SignOut)
		r.Post("/switch", server.Switch)
	})

	r.Route("/wallets", func(r chi.Router) {
		r.Get("/", server.ListWallets)
		r.Post("/", server.AddWallet)
		r.Delete("/{chain}/{address}", func(w http.ResponseWriter, r *http.Request) {
			server.RemoveWallet(w, r, chi.URLParam(r, "chain"), chi.URLParam(r, "address"))
		})
	})

	r.Route("/prompt", func(r chi.Router) {
		r.Get("/", server.Prompt)
		r.Post("/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
			server.ResolvePrompt(w, r, chi.URLParam(r, "id"))
		})
		r.Post("/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
			server.CancelPrompt(w, r, chi.URLParam(r, "id"))
		})
	})
}

// RequireConnected wraps the http package middleware for use with r.With.
func RequireConnected(server *httpws.Server) func(http.Handler) http.Handler {
	return httpws.NewRequireConnectedMiddleware(server.Session(), nil)
}
