package http

import (
	"sync"
	"time"

	"github.com/0xWizop/incubator-sub002"
)

// PromptModal is a walletsession.Modal that parks the open prompt so a remote
// UI can fetch it and report the user's choice over HTTP.
type PromptModal struct {
	mu      sync.Mutex
	current *walletsession.Prompt
}

// NewPromptModal creates an empty PromptModal.
func NewPromptModal() *PromptModal {
	return &PromptModal{}
}

// Present implements walletsession.Modal. It holds the prompt until it is
// settled by a client, by the session or by expiry.
func (m *PromptModal) Present(prompt *walletsession.Prompt) {
	m.mu.Lock()
	m.current = prompt
	m.mu.Unlock()

	<-prompt.Done()

	m.mu.Lock()
	if m.current == prompt {
		m.current = nil
	}
	m.mu.Unlock()
}

// Current returns the open prompt, if any.
func (m *PromptModal) Current() (*walletsession.Prompt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, false
	}
	select {
	case <-m.current.Done():
		return nil, false
	default:
		return m.current, true
	}
}

// PromptView is the JSON shape of an open prompt.
type PromptView struct {
	ID       string                 `json:"id"`
	OpenedAt time.Time              `json:"openedAt"`
	Wallets  []walletsession.Wallet `json:"wallets"`
}

func viewOf(p *walletsession.Prompt) PromptView {
	wallets := p.Wallets
	if wallets == nil {
		wallets = []walletsession.Wallet{}
	}
	return PromptView{ID: p.ID, OpenedAt: p.OpenedAt, Wallets: wallets}
}
