package walletsession

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Broker mediates connect requests from any number of independent call
// sites. Requests arriving while the session is locked share one
// PendingConnection: one modal presentation, one unlock attempt, one outcome
// broadcast to every waiter.
type Broker struct {
	session *Session
	modal   Modal

	mu       sync.Mutex
	pending  *PendingConnection
	episodes int
}

// PendingConnection is the in-flight state of one connect episode. It exists
// from the first connect call until the unlock resolves and is never persisted.
type PendingConnection struct {
	ID       string
	OpenedAt time.Time

	epoch      uint64
	waiters    map[uint64]struct{}
	nextWaiter uint64
	presented  int
	prompt     *Prompt

	done   chan struct{}
	wallet Wallet
	err    error
}

// EpisodeInfo is a snapshot of the pending connection.
type EpisodeInfo struct {
	ID            string    `json:"id"`
	OpenedAt      time.Time `json:"openedAt"`
	Waiters       int       `json:"waiters"`
	Presentations int       `json:"presentations"`
}

func newBroker(s *Session, modal Modal) *Broker {
	return &Broker{
		session: s,
		modal:   modal,
	}
}

// Connect returns the active wallet, unlocking the session first if needed.
//
//  1. If the session is unlocked, the active wallet is returned at once with
//     no modal and no signer call.
//  2. If an episode is pending, the caller joins it.
//  3. Otherwise a new episode starts: the modal is presented once and the
//     gate challenges the signer for the selected wallet.
//
// Every waiter of an episode receives the identical outcome. Cancelling ctx
// removes only this caller; the episode continues for the others.
func (b *Broker) Connect(ctx context.Context) (Wallet, error) {
	if w, ok := b.session.ActiveWallet(); ok {
		return w, nil
	}

	b.mu.Lock()
	if b.session.ctx.Err() != nil {
		b.mu.Unlock()
		return Wallet{}, ErrClosed
	}
	epoch := b.session.Epoch()
	p := b.pending
	if p == nil || p.epoch != epoch {
		p = &PendingConnection{
			ID:       uuid.NewString(),
			OpenedAt: b.session.now(),
			epoch:    epoch,
			waiters:  make(map[uint64]struct{}),
			done:     make(chan struct{}),
		}
		b.pending = p
		b.episodes++
		b.session.logger.Info("connect episode opened", "episode", p.ID)
		go b.run(p)
	}
	id := p.nextWaiter
	p.nextWaiter++
	p.waiters[id] = struct{}{}
	b.mu.Unlock()

	select {
	case <-p.done:
		return p.wallet, p.err
	case <-ctx.Done():
		b.mu.Lock()
		delete(p.waiters, id)
		b.mu.Unlock()
		return Wallet{}, ctx.Err()
	}
}

// Pending returns a snapshot of the open episode, if any.
func (b *Broker) Pending() (EpisodeInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return EpisodeInfo{}, false
	}
	return EpisodeInfo{
		ID:            b.pending.ID,
		OpenedAt:      b.pending.OpenedAt,
		Waiters:       len(b.pending.waiters),
		Presentations: b.pending.presented,
	}, true
}

// Episodes returns how many connect episodes have been opened.
func (b *Broker) Episodes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.episodes
}

func (b *Broker) run(p *PendingConnection) {
	var sel Selector
	if b.modal != nil {
		sel = SelectorFunc(func(ctx context.Context, wallets []Wallet) (Wallet, error) {
			return b.present(ctx, p, wallets)
		})
	} else {
		sel = b.session.gate.selector
	}

	wallet, err := b.session.gate.begin(b.session.ctx, nil, sel, &p.epoch)

	b.mu.Lock()
	if b.pending == p {
		b.pending = nil
	}
	p.wallet, p.err = wallet, err
	waiters := len(p.waiters)
	b.mu.Unlock()
	close(p.done)

	if err != nil {
		b.session.logger.Info("connect episode failed", "episode", p.ID, "waiters", waiters, "error", err)
		return
	}
	b.session.logger.Info("connect episode resolved", "episode", p.ID, "waiters", waiters, "wallet", wallet.Key().String())
}

// interrupt dismisses the prompt of an episode opened before the latest
// lock. Its waiters receive ErrUnlockInterrupted.
func (b *Broker) interrupt() {
	epoch := b.session.Epoch()

	b.mu.Lock()
	var prompt *Prompt
	if p := b.pending; p != nil && p.epoch != epoch {
		prompt = p.prompt
	}
	b.mu.Unlock()

	if prompt != nil && prompt.settle(Wallet{}, ErrUnlockInterrupted) {
		b.session.logger.Info("connect prompt interrupted by lock", "episode", prompt.ID)
	}
}

func (b *Broker) present(ctx context.Context, p *PendingConnection, wallets []Wallet) (Wallet, error) {
	b.mu.Lock()
	if p.presented > 0 {
		b.mu.Unlock()
		return Wallet{}, ErrUnlockDenied
	}
	if err := ctx.Err(); err != nil {
		b.mu.Unlock()
		return Wallet{}, err
	}
	prompt := newPrompt(p.ID, wallets, b.session.now())
	p.presented++
	p.prompt = prompt
	b.mu.Unlock()

	go b.modal.Present(prompt)
	return prompt.await(ctx)
}
