package walletsession

import (
	"context"
	"sync"
	"time"
)

// Modal is the UI collaborator that lets the user pick (and approve) the
// wallet to unlock. The broker presents it at most once per connect episode.
//
// Present may block; the broker calls it on its own goroutine. The user's
// decision is reported through Prompt.Resolve or Prompt.Cancel.
type Modal interface {
	Present(prompt *Prompt)
}

// ModalFunc adapts a function to the Modal interface.
type ModalFunc func(prompt *Prompt)

// Present implements Modal.
func (f ModalFunc) Present(prompt *Prompt) { f(prompt) }

// Prompt is one presentation of the wallet-selection modal.
type Prompt struct {
	// ID identifies the prompt; it equals the episode id.
	ID string

	// Wallets are the registered wallets at presentation time, in display order.
	Wallets []Wallet

	// OpenedAt is when the prompt was presented.
	OpenedAt time.Time

	once   sync.Once
	done   chan struct{}
	wallet Wallet
	err    error
}

func newPrompt(id string, wallets []Wallet, openedAt time.Time) *Prompt {
	return &Prompt{
		ID:       id,
		Wallets:  wallets,
		OpenedAt: openedAt,
		done:     make(chan struct{}),
	}
}

// Resolve reports the user's choice. Only the first Resolve or Cancel counts;
// it returns false when the prompt was already settled.
func (p *Prompt) Resolve(wallet Wallet) bool {
	if wallet.IsZero() {
		return p.Cancel()
	}
	return p.settle(wallet, nil)
}

// Cancel reports that the user dismissed the modal.
func (p *Prompt) Cancel() bool {
	return p.settle(Wallet{}, ErrUnlockDenied)
}

// Done is closed once the prompt is settled, including when it expires.
// Modals use it to dismiss themselves.
func (p *Prompt) Done() <-chan struct{} {
	return p.done
}

func (p *Prompt) settle(wallet Wallet, err error) bool {
	settled := false
	p.once.Do(func() {
		p.wallet, p.err = wallet, err
		close(p.done)
		settled = true
	})
	return settled
}

func (p *Prompt) await(ctx context.Context) (Wallet, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		p.settle(Wallet{}, ctx.Err())
	}
	return p.wallet, p.err
}
