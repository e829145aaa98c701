package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/0xWizop/incubator-sub002"
)

// Server exposes a Session over HTTP. Its handlers are plain net/http
// functions; router adapters bind them to paths.
type Server struct {
	session *walletsession.Session
	prompts *PromptModal
	logger  *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server) error

// WithPromptModal exposes the given modal's prompts under /prompt.
func WithPromptModal(m *PromptModal) ServerOption {
	return func(s *Server) error {
		s.prompts = m
		return nil
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// NewServer creates a Server for session.
func NewServer(session *walletsession.Session, opts ...ServerOption) (*Server, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	s := &Server{session: session, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Session returns the served session.
func (s *Server) Session() *walletsession.Session { return s.session }

// WalletRequest names a registered wallet in request bodies.
type WalletRequest struct {
	Chain   walletsession.Chain `json:"chain"`
	Address string              `json:"address"`
}

// WalletsResponse is the body of the wallet listing.
type WalletsResponse struct {
	Wallets []walletsession.Wallet `json:"wallets"`
}

// Status handles GET /session.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Projection())
}

// Connect handles POST /session/connect. It blocks until the session is
// unlocked, the episode fails or the client goes away.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.Connect(r.Context()); err != nil {
		s.logger.Debug("connect failed", "error", err)
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Projection())
}

// Lock handles POST /session/lock.
func (s *Server) Lock(w http.ResponseWriter, r *http.Request) {
	s.session.Lock()
	writeJSON(w, http.StatusOK, s.session.Projection())
}

// SignOut handles POST /session/signout.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.session.SignOut(r.Context()); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Projection())
}

// Switch handles POST /session/switch.
func (s *Server) Switch(w http.ResponseWriter, r *http.Request) {
	var req WalletRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if _, err := s.session.Switch(r.Context(), req.Chain, req.Address); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Projection())
}

// ListWallets handles GET /wallets. Repeated chain parameters filter the list.
func (s *Server) ListWallets(w http.ResponseWriter, r *http.Request) {
	var chains []walletsession.Chain
	for _, raw := range r.URL.Query()["chain"] {
		chain, err := walletsession.ParseChain(raw)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		chains = append(chains, chain)
	}
	wallets := slices.Collect(s.session.Wallets(chains...))
	if wallets == nil {
		wallets = []walletsession.Wallet{}
	}
	writeJSON(w, http.StatusOK, WalletsResponse{Wallets: wallets})
}

// AddWallet handles POST /wallets.
func (s *Server) AddWallet(w http.ResponseWriter, r *http.Request) {
	var wallet walletsession.Wallet
	if err := decodeBody(w, r, &wallet); err != nil {
		writeError(w, s.logger, err)
		return
	}
	added, err := s.session.AddWallet(r.Context(), wallet)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// RemoveWallet handles DELETE /wallets/{chain}/{address}.
func (s *Server) RemoveWallet(w http.ResponseWriter, r *http.Request, chain, address string) {
	c, err := walletsession.ParseChain(chain)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	removed, err := s.session.RemoveWallet(r.Context(), c, address)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// Prompt handles GET /prompt. It answers 204 when no modal is open.
func (s *Server) Prompt(w http.ResponseWriter, r *http.Request) {
	p, ok := s.currentPrompt()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// ResolvePrompt handles POST /prompt/{id}/resolve. The chosen wallet must be
// registered; it need not have been listed when the prompt opened.
func (s *Server) ResolvePrompt(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.lookupPrompt(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	var req WalletRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	wallet, ok := s.session.Wallet(walletsession.NewWalletKey(req.Chain, req.Address))
	if !ok {
		writeError(w, s.logger, fmt.Errorf("%w: %s:%s", walletsession.ErrNotFound, req.Chain, req.Address))
		return
	}
	if !p.Resolve(wallet) {
		writeError(w, s.logger, fmt.Errorf("%w: prompt %s", walletsession.ErrNotFound, id))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CancelPrompt handles POST /prompt/{id}/cancel.
func (s *Server) CancelPrompt(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.lookupPrompt(id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	p.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) currentPrompt() (*walletsession.Prompt, bool) {
	if s.prompts == nil {
		return nil, false
	}
	return s.prompts.Current()
}

func (s *Server) lookupPrompt(id string) (*walletsession.Prompt, error) {
	p, ok := s.currentPrompt()
	if !ok || p.ID != id {
		return nil, fmt.Errorf("%w: prompt %s", walletsession.ErrNotFound, id)
	}
	return p, nil
}
