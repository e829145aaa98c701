package walletsession

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Session is the single source of truth for wallet state: the registry, the
// lock state and the active-wallet selection. It is created once, empty and
// Locked, and handed explicitly to whatever needs it.
//
// Invariants, held under mu:
//   - active is non-nil only while state == Unlocked
//   - active always names a wallet present in the registry
//   - the registry never holds two wallets with the same WalletKey
type Session struct {
	// writeMu serializes registry writes with their persistence so that
	// persister I/O never runs under mu. Acquire it before mu, never after.
	writeMu sync.Mutex

	mu       sync.Mutex
	registry *Registry
	state    LockState
	active   *WalletKey
	// epoch increments on every lock; unlock resolutions carrying an older
	// epoch are discarded.
	epoch  uint64
	closed bool

	// ctx spans the session lifetime; unlock attempts run under it so that
	// Close abandons them.
	ctx    context.Context
	cancel context.CancelFunc

	gate   *LockGate
	broker *Broker

	signer              Signer
	verifiers           map[NetworkType]Verifier
	selector            Selector
	modal               Modal
	unlockTimeout       time.Duration
	selectionTimeout    time.Duration
	rechallengeOnSwitch bool
	persister           Persister
	normalize           Normalizer
	logger              *slog.Logger
	now                 func() time.Time
	callbacks           map[SessionEventType][]SessionCallback

	subsMu  sync.Mutex
	subs    map[int]chan Projection
	nextSub int
}

// New creates an empty, Locked session.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		registry:            NewRegistry(),
		state:               Locked,
		verifiers:           make(map[NetworkType]Verifier),
		unlockTimeout:       DefaultUnlockTimeout,
		selectionTimeout:    DefaultSelectionTimeout,
		rechallengeOnSwitch: true,
		normalize:           checkWallet,
		logger:              slog.Default(),
		now:                 time.Now,
		callbacks:           make(map[SessionEventType][]SessionCallback),
		subs:                make(map[int]chan Projection),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.gate = newLockGate(s)
	s.broker = newBroker(s, s.modal)
	return s, nil
}

// Gate returns the session's lock gate.
func (s *Session) Gate() *LockGate { return s.gate }

// Broker returns the session's connection broker.
func (s *Session) Broker() *Broker { return s.broker }

// Restore loads persisted wallets into the registry. Entries that fail
// validation or collide are skipped with a warning.
func (s *Session) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	wallets, err := s.persister.Load(ctx)
	if err != nil {
		return NewSessionError(ErrCodePersistence, "failed to load wallets", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range wallets {
		w, err := s.normalize(w)
		if err != nil {
			s.logger.Warn("skipping persisted wallet", "error", err)
			continue
		}
		if _, err := s.registry.Add(w); err != nil {
			s.logger.Warn("skipping persisted wallet", "wallet", w.Key().String(), "error", err)
		}
	}
	s.logger.Info("wallets restored", "count", s.registry.Len())
	s.publishLocked()
	return nil
}

// AddWallet validates and registers wallet. With a persister the wallet is
// stored first and only becomes visible once the write succeeded; the write
// runs outside the session lock so Lock never waits on it.
func (s *Session) AddWallet(ctx context.Context, wallet Wallet) (Wallet, error) {
	wallet, err := s.normalize(wallet)
	if err != nil {
		return Wallet{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Wallet{}, ErrClosed
	}
	if s.registry.Contains(wallet.Key()) {
		s.mu.Unlock()
		return Wallet{}, fmt.Errorf("%w: %s", ErrDuplicateWallet, wallet.Key())
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Save(ctx, wallet); err != nil {
			return Wallet{}, NewSessionError(ErrCodePersistence, "failed to persist wallet", err).
				WithDetails("wallet", wallet.Key().String())
		}
	}

	s.mu.Lock()
	added, err := s.registry.Add(wallet)
	if err != nil {
		s.mu.Unlock()
		return Wallet{}, err
	}
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info("wallet added", "chain", added.Chain, "address", added.Address)
	s.emit(SessionEvent{Type: SessionEventWalletAdded, Wallet: added})
	return added, nil
}

// RemoveWallet removes the wallet registered under (chain, address). When it
// is the active wallet the session locks in the same step, so no observer can
// see a dangling active reference. The persisted entry is deleted first,
// outside the session lock.
func (s *Session) RemoveWallet(ctx context.Context, chain Chain, address string) (Wallet, error) {
	key := NewWalletKey(chain, address)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.registry.Contains(key) {
		s.mu.Unlock()
		return Wallet{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Delete(ctx, key); err != nil {
			return Wallet{}, NewSessionError(ErrCodePersistence, "failed to delete persisted wallet", err).
				WithDetails("wallet", key.String())
		}
	}

	s.mu.Lock()
	removed, err := s.registry.Remove(chain, address)
	if err != nil {
		s.mu.Unlock()
		return Wallet{}, err
	}

	var lockEvent *SessionEvent
	if s.active != nil && *s.active == key {
		from := s.lockLocked()
		lockEvent = &SessionEvent{Type: SessionEventLocked, Wallet: removed, From: from, To: Locked}
	}
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info("wallet removed", "chain", removed.Chain, "address", removed.Address, "was_active", lockEvent != nil)
	s.emit(SessionEvent{Type: SessionEventWalletRemoved, Wallet: removed})
	if lockEvent != nil {
		s.broker.interrupt()
		s.emit(*lockEvent)
	}
	return removed, nil
}

// Wallets returns a lazy, restartable sequence of registered wallets in
// insertion order, optionally filtered by chain. Each iteration reads a
// consistent snapshot of the registry.
func (s *Session) Wallets(chains ...Chain) iter.Seq[Wallet] {
	return func(yield func(Wallet) bool) {
		s.mu.Lock()
		snapshot := slices.Collect(s.registry.List(chains...))
		s.mu.Unlock()

		for _, w := range snapshot {
			if !yield(w) {
				return
			}
		}
	}
}

// Wallet returns the wallet registered under key.
func (s *Session) Wallet(key WalletKey) (Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Get(key)
}

// State returns the current lock state.
func (s *Session) State() LockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveWallet returns the active wallet when the session is unlocked.
func (s *Session) ActiveWallet() (Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

// Epoch returns the lock epoch, which increments on every lock.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Projection returns the current consumer projection.
func (s *Session) Projection() Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectionLocked()
}

// View returns the consumer-facing view bound to this session.
func (s *Session) View() *View {
	return &View{session: s}
}

// Connect requests that the session become unlocked with some active wallet.
// See Broker.Connect.
func (s *Session) Connect(ctx context.Context) (Wallet, error) {
	return s.broker.Connect(ctx)
}

// BeginUnlock unlocks target, or the selector's choice when target is nil.
// See LockGate.BeginUnlock.
func (s *Session) BeginUnlock(ctx context.Context, target *Wallet) (Wallet, error) {
	return s.gate.BeginUnlock(ctx, target)
}

// Lock transitions to Locked and clears the active wallet. It never blocks on
// the signer and always succeeds.
func (s *Session) Lock() {
	s.gate.Lock()
}

// Switch makes the wallet at (chain, address) active while the session is
// unlocked. Unless rechallenge-on-switch is disabled and both wallets share a
// signer, this runs a fresh unlock challenge for the target.
func (s *Session) Switch(ctx context.Context, chain Chain, address string) (Wallet, error) {
	key := NewWalletKey(chain, address)

	s.mu.Lock()
	target, ok := s.registry.Get(key)
	if !ok {
		s.mu.Unlock()
		return Wallet{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	current, unlocked := s.activeLocked()
	if !unlocked {
		s.mu.Unlock()
		return Wallet{}, ErrNotUnlocked
	}
	if current.Key() == key {
		s.mu.Unlock()
		return current, nil
	}
	if !s.rechallengeOnSwitch && current.SignerRef != "" && current.SignerRef == target.SignerRef {
		s.active = &key
		s.publishLocked()
		s.mu.Unlock()

		s.logger.Info("active wallet switched", "from", current.Key().String(), "to", key.String())
		s.emit(SessionEvent{Type: SessionEventUnlocked, Wallet: target, From: Unlocked, To: Unlocked})
		return target, nil
	}
	s.mu.Unlock()

	return s.gate.BeginUnlock(ctx, &target)
}

// SignOut locks the session and forgets every wallet, in memory and in the
// persister, returning the session to its initial empty Locked form.
func (s *Session) SignOut(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	from := s.lockLocked()
	s.registry.Reset()
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info("signed out")
	if from != Locked {
		s.broker.interrupt()
		s.emit(SessionEvent{Type: SessionEventLocked, From: from, To: Locked})
	}

	if s.persister != nil {
		if err := s.persister.Clear(ctx); err != nil {
			return NewSessionError(ErrCodePersistence, "failed to clear persisted wallets", err)
		}
	}
	return nil
}

// Subscribe returns a channel receiving the projection after every session
// mutation, and a func that unsubscribes and closes the channel. A slow
// subscriber only sees the most recent projection.
func (s *Session) Subscribe() (<-chan Projection, func()) {
	ch := make(chan Projection, 1)

	s.mu.Lock()
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.projectionLocked()
	s.subsMu.Unlock()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subsMu.Unlock()
		})
	}
}

// Close locks the session, abandons any open connect episode and releases
// subscribers. Later connect and unlock calls fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	from := s.lockLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.cancel()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()

	if from != Locked {
		s.emit(SessionEvent{Type: SessionEventLocked, From: from, To: Locked})
	}
	return nil
}

// activeLocked returns the active wallet. Requires s.mu.
func (s *Session) activeLocked() (Wallet, bool) {
	if s.state != Unlocked || s.active == nil {
		return Wallet{}, false
	}
	return s.registry.Get(*s.active)
}

// lockLocked applies the Locked transition and returns the previous state.
// Requires s.mu.
func (s *Session) lockLocked() LockState {
	from := s.state
	s.state = Locked
	s.active = nil
	s.epoch++
	if a := s.gate.inflight; a != nil && a.epoch != s.epoch {
		a.stopSelect()
	}
	if from != Locked {
		s.logger.Info("lock state changed", "from", from, "to", Locked)
	}
	return from
}

func (s *Session) projectionLocked() Projection {
	p := Projection{LockState: s.state}
	if w, ok := s.activeLocked(); ok {
		p.Address = w.Address
		p.Chain = w.Chain
		p.Label = w.Label
		p.IsConnected = true
	}
	return p
}

// publishLocked pushes the current projection to subscribers. Requires s.mu,
// which keeps deliveries in mutation order.
func (s *Session) publishLocked() {
	p := s.projectionLocked()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}

func (s *Session) emit(event SessionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	for _, cb := range s.callbacks[event.Type] {
		cb(event)
	}
}

// checkWallet is the default Normalizer. It checks structure only; use
// validation.NormalizeWallet for full address validation.
func checkWallet(w Wallet) (Wallet, error) {
	w.Address = strings.TrimSpace(w.Address)
	w.Label = strings.TrimSpace(w.Label)
	if w.Address == "" {
		return Wallet{}, fmt.Errorf("%w: address cannot be empty", ErrInvalidWallet)
	}
	if _, err := ValidateChain(w.Chain); err != nil {
		return Wallet{}, errors.Join(ErrInvalidWallet, err)
	}
	return w, nil
}
