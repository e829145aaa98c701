package walletsession

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// LockGate is the Locked → Unlocking → Unlocked → Locked state machine that
// guards signing-capable operations. It owns the unlock challenge exchanged
// with the signer; the resulting state lives in the Session.
//
// Only one unlock attempt is in flight per lock epoch. Callers arriving while
// it runs are folded into it and receive its outcome.
type LockGate struct {
	session          *Session
	signer           Signer
	verifiers        map[NetworkType]Verifier
	selector         Selector
	timeout          time.Duration
	selectionTimeout time.Duration

	// inflight is guarded by session.mu.
	inflight *unlockAttempt
}

type unlockAttempt struct {
	id      string
	epoch   uint64
	target  *Wallet
	started time.Time
	done    chan struct{}
	wallet  Wallet
	err     error

	// selectCtx bounds the selection step; stopSelect ends it when a lock
	// makes the attempt stale. The signer round-trip is not affected.
	selectCtx  context.Context
	stopSelect context.CancelFunc
}

func (a *unlockAttempt) wait(ctx context.Context) (Wallet, error) {
	select {
	case <-a.done:
		return a.wallet, a.err
	case <-ctx.Done():
		return Wallet{}, ctx.Err()
	}
}

func newLockGate(s *Session) *LockGate {
	return &LockGate{
		session:          s,
		signer:           s.signer,
		verifiers:        s.verifiers,
		selector:         s.selector,
		timeout:          s.unlockTimeout,
		selectionTimeout: s.selectionTimeout,
	}
}

// BeginUnlock unlocks target, or the configured selector's choice when target
// is nil.
//
// If the session is already unlocked and target is nil or equal to the active
// wallet, it returns the active wallet without contacting the signer.
// Otherwise the gate enters Unlocking, challenges the signer and suspends the
// caller until the attempt resolves. Cancelling ctx abandons the wait, not the
// attempt; the attempt itself only stops early when the session is closed.
//
// Failures leave the session Locked: ErrUnlockDenied when the user or signer
// declines, ErrUnlockTimeout when the signer misses the deadline, and
// ErrUnlockInterrupted when Lock was called before the attempt resolved.
func (g *LockGate) BeginUnlock(ctx context.Context, target *Wallet) (Wallet, error) {
	return g.begin(ctx, target, g.selector, nil)
}

// Lock transitions to Locked and clears the active wallet regardless of the
// current state. An in-flight attempt keeps waiting for its signer but its
// result is discarded.
func (g *LockGate) Lock() {
	s := g.session
	s.mu.Lock()
	from := s.lockLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.broker.interrupt()
	if from != Locked {
		s.emit(SessionEvent{Type: SessionEventLocked, From: from, To: Locked})
	}
}

// begin starts or joins an unlock attempt. When pinned is set the attempt only
// starts if the session is still in that epoch.
func (g *LockGate) begin(ctx context.Context, target *Wallet, sel Selector, pinned *uint64) (Wallet, error) {
	s := g.session

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Wallet{}, ErrClosed
	}
	if pinned != nil && *pinned != s.epoch {
		s.mu.Unlock()
		return Wallet{}, ErrUnlockInterrupted
	}
	if current, ok := s.activeLocked(); ok && (target == nil || target.Key() == current.Key()) {
		s.mu.Unlock()
		return current, nil
	}
	if a := g.inflight; a != nil && a.epoch == s.epoch {
		s.mu.Unlock()
		return a.wait(ctx)
	}

	a := &unlockAttempt{
		id:      uuid.NewString(),
		epoch:   s.epoch,
		target:  target,
		started: s.now(),
		done:    make(chan struct{}),
	}
	a.selectCtx, a.stopSelect = context.WithCancel(s.ctx)
	g.inflight = a
	from := s.state
	s.state = Unlocking
	s.active = nil
	s.publishLocked()
	s.mu.Unlock()

	event := SessionEvent{Type: SessionEventUnlockAttempt, AttemptID: a.id, From: from, To: Unlocking}
	if target != nil {
		event.Wallet = *target
	}
	s.logger.Info("unlock started", "attempt", a.id, "from", from, "selection", target == nil)
	s.emit(event)

	go g.run(s.ctx, a, sel)
	return a.wait(ctx)
}

func (g *LockGate) run(ctx context.Context, a *unlockAttempt, sel Selector) {
	wallet, err := g.selectTarget(a.selectCtx, a, sel)
	a.stopSelect()
	if err == nil {
		if g.session.Epoch() != a.epoch {
			err = ErrUnlockInterrupted
		} else {
			err = g.challenge(ctx, wallet)
		}
	}
	a.wallet, a.err = g.finish(a, wallet, err)
	close(a.done)
}

// finish applies the outcome of a to the session unless a lock happened since
// it started.
func (g *LockGate) finish(a *unlockAttempt, wallet Wallet, err error) (Wallet, error) {
	s := g.session
	duration := s.now().Sub(a.started)

	s.mu.Lock()
	if g.inflight == a {
		g.inflight = nil
	}

	if a.epoch != s.epoch {
		s.mu.Unlock()
		if err == nil {
			s.logger.Warn("discarding stale unlock", "attempt", a.id, "wallet", wallet.Key().String())
		}
		err = ErrUnlockInterrupted
		s.emit(SessionEvent{Type: SessionEventUnlockFailed, AttemptID: a.id, Wallet: wallet, From: Unlocking, To: Locked, Error: err, Duration: duration})
		return Wallet{}, err
	}

	if err == nil {
		registered, ok := s.registry.Get(wallet.Key())
		if !ok {
			err = fmt.Errorf("%w: %s removed during unlock", ErrNotFound, wallet.Key())
		}
		wallet = registered
	}

	if err != nil {
		s.state = Locked
		s.active = nil
		s.publishLocked()
		s.mu.Unlock()

		s.logger.Info("unlock failed", "attempt", a.id, "error", err)
		s.emit(SessionEvent{Type: SessionEventUnlockFailed, AttemptID: a.id, Wallet: wallet, From: Unlocking, To: Locked, Error: err, Duration: duration})
		return Wallet{}, err
	}

	key := wallet.Key()
	s.state = Unlocked
	s.active = &key
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info("unlocked", "attempt", a.id, "chain", wallet.Chain, "address", wallet.Address)
	s.emit(SessionEvent{Type: SessionEventUnlocked, AttemptID: a.id, Wallet: wallet, From: Unlocking, To: Unlocked, Duration: duration})
	return wallet, nil
}

func (g *LockGate) selectTarget(ctx context.Context, a *unlockAttempt, sel Selector) (Wallet, error) {
	s := g.session

	if a.target != nil {
		w, ok := s.Wallet(a.target.Key())
		if !ok {
			return Wallet{}, fmt.Errorf("%w: %s", ErrNotFound, a.target.Key())
		}
		return w, nil
	}

	if sel == nil {
		return Wallet{}, fmt.Errorf("%w: no wallet selector configured", ErrUnlockDenied)
	}

	if g.selectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.selectionTimeout)
		defer cancel()
	}

	chosen, err := sel.Select(ctx, slices.Collect(s.Wallets()))
	if err != nil {
		return Wallet{}, classifyUnlockError(err)
	}
	if chosen.IsZero() {
		return Wallet{}, ErrUnlockDenied
	}

	w, ok := s.Wallet(chosen.Key())
	if !ok {
		return Wallet{}, fmt.Errorf("%w: selected wallet %s is not registered", ErrUnlockDenied, chosen.Key())
	}
	return w, nil
}

func (g *LockGate) challenge(ctx context.Context, wallet Wallet) error {
	if g.signer == nil {
		return fmt.Errorf("%w: %w", ErrUnlockDenied, ErrNoSigner)
	}

	ch := g.newChallenge(wallet)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type result struct {
		sig *Signature
		err error
	}
	resc := make(chan result, 1)
	go func() {
		sig, err := g.signer.Challenge(ctx, ch)
		resc <- result{sig: sig, err: err}
	}()

	var r result
	select {
	case r = <-resc:
	case <-ctx.Done():
		return classifyUnlockError(ctx.Err())
	}
	if r.err != nil {
		return classifyUnlockError(r.err)
	}
	return g.verify(wallet, ch, r.sig)
}

func (g *LockGate) newChallenge(wallet Wallet) Challenge {
	id := uuid.NewString()
	issued := g.session.now().UTC()
	msg := fmt.Sprintf("Unlock wallet %s:%s\nChallenge: %s\nIssued At: %s",
		wallet.Chain, wallet.Address, id, issued.Format(time.RFC3339))
	return Challenge{
		ID:       id,
		Wallet:   wallet,
		Message:  []byte(msg),
		IssuedAt: issued,
	}
}

func (g *LockGate) verify(wallet Wallet, ch Challenge, sig *Signature) error {
	if sig == nil || len(sig.Bytes) == 0 {
		return fmt.Errorf("%w: %w: empty signature", ErrUnlockDenied, ErrSignatureMismatch)
	}
	if sig.Wallet != (WalletKey{}) && sig.Wallet != wallet.Key() {
		return fmt.Errorf("%w: %w: signed for %s", ErrUnlockDenied, ErrSignatureMismatch, sig.Wallet)
	}
	if len(sig.Message) > 0 && !bytes.Equal(sig.Message, ch.Message) {
		return fmt.Errorf("%w: %w: message differs from challenge", ErrUnlockDenied, ErrSignatureMismatch)
	}
	if v := g.verifiers[NetworkTypeOf(wallet.Chain)]; v != nil {
		if err := v.Verify(wallet, ch.Message, sig.Bytes); err != nil {
			return fmt.Errorf("%w: %w", ErrUnlockDenied, err)
		}
	}
	return nil
}

// classifyUnlockError maps a selector or signer failure onto the gate error
// taxonomy. Gate sentinels pass through unchanged.
func classifyUnlockError(err error) error {
	switch {
	case errors.Is(err, ErrUnlockDenied),
		errors.Is(err, ErrUnlockTimeout),
		errors.Is(err, ErrUnlockInterrupted):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrUnlockTimeout
	default:
		return fmt.Errorf("%w: %w", ErrUnlockDenied, err)
	}
}
