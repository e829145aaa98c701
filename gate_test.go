package walletsession

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestBeginUnlock_LockInterruptsInflightAttempt(t *testing.T) {
	release := make(chan struct{})
	signer := gatedSigner(release)
	rec := &eventRecorder{}
	s := newTestSession(t, append(rec.options(), WithSigner(signer))...)
	mustAdd(t, s, walletA)

	result := make(chan connectResult, 1)
	go func() {
		w, err := s.BeginUnlock(context.Background(), &walletA)
		result <- connectResult{w, err}
	}()

	waitFor(t, "signer to be challenged", func() bool { return signer.calls.Load() == 1 })
	if s.State() != Unlocking {
		t.Fatalf("state = %v, want unlocking", s.State())
	}

	s.Lock()
	if s.State() != Locked {
		t.Fatalf("Lock must apply immediately, state = %v", s.State())
	}

	close(release)
	r := receive(t, result)
	if !errors.Is(r.err, ErrUnlockInterrupted) {
		t.Fatalf("BeginUnlock error = %v, want ErrUnlockInterrupted", r.err)
	}
	if s.State() != Locked {
		t.Errorf("state = %v, want locked", s.State())
	}
	if _, ok := s.ActiveWallet(); ok {
		t.Error("stale approval must not set an active wallet")
	}

	want := []SessionEventType{SessionEventWalletAdded, SessionEventUnlockAttempt, SessionEventLocked, SessionEventUnlockFailed}
	if got := rec.types(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestBeginUnlock_LockEndsSelection(t *testing.T) {
	entered := make(chan struct{})
	selector := SelectorFunc(func(ctx context.Context, _ []Wallet) (Wallet, error) {
		close(entered)
		<-ctx.Done()
		return Wallet{}, ctx.Err()
	})
	signer := &fakeSigner{}
	s := newTestSession(t, WithSelector(selector), WithSigner(signer), WithSelectionTimeout(time.Hour))
	mustAdd(t, s, walletA)

	result := make(chan connectResult, 1)
	go func() {
		w, err := s.BeginUnlock(context.Background(), nil)
		result <- connectResult{w, err}
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("selector was not called")
	}

	s.Lock()
	r := receive(t, result)
	if !errors.Is(r.err, ErrUnlockInterrupted) {
		t.Fatalf("BeginUnlock error = %v, want ErrUnlockInterrupted", r.err)
	}
	if n := signer.calls.Load(); n != 0 {
		t.Errorf("signer challenged %d times, want 0", n)
	}
}

func TestBeginUnlock_ConcurrentCallsShareAttempt(t *testing.T) {
	release := make(chan struct{})
	signer := gatedSigner(release)
	s := newTestSession(t, WithSigner(signer))
	mustAdd(t, s, walletA)

	first := make(chan connectResult, 1)
	go func() {
		w, err := s.BeginUnlock(context.Background(), &walletA)
		first <- connectResult{w, err}
	}()
	waitFor(t, "signer to be challenged", func() bool { return signer.calls.Load() == 1 })

	second := make(chan connectResult, 1)
	go func() {
		w, err := s.BeginUnlock(context.Background(), nil)
		second <- connectResult{w, err}
	}()

	close(release)
	for _, ch := range []chan connectResult{first, second} {
		r := receive(t, ch)
		if r.err != nil {
			t.Fatalf("BeginUnlock: %v", r.err)
		}
		if r.wallet.Key() != walletA.Key() {
			t.Errorf("BeginUnlock = %s, want %s", r.wallet.Key(), walletA.Key())
		}
	}
	if n := signer.calls.Load(); n != 1 {
		t.Errorf("signer challenged %d times, want 1", n)
	}
}

func TestBeginUnlock_Timeout(t *testing.T) {
	tests := []struct {
		name   string
		signer func(release <-chan struct{}) Signer
	}{
		{
			name: "signer honors deadline",
			signer: func(release <-chan struct{}) Signer {
				return gatedSigner(release)
			},
		},
		{
			name: "signer ignores deadline",
			signer: func(release <-chan struct{}) Signer {
				return SignerFunc(func(_ context.Context, ch Challenge) (*Signature, error) {
					<-release
					return approve(ch), nil
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := make(chan struct{})
			defer close(release)

			s := newTestSession(t, WithSigner(tt.signer(release)), WithUnlockTimeout(20*time.Millisecond))
			mustAdd(t, s, walletA)

			_, err := s.BeginUnlock(context.Background(), &walletA)
			if !errors.Is(err, ErrUnlockTimeout) {
				t.Fatalf("BeginUnlock error = %v, want ErrUnlockTimeout", err)
			}
			if CodeOf(err) != ErrCodeUnlockTimeout {
				t.Errorf("CodeOf = %q", CodeOf(err))
			}
			if s.State() != Locked {
				t.Errorf("state = %v, want locked", s.State())
			}
		})
	}
}

func TestBeginUnlock_SelectionTimeout(t *testing.T) {
	selector := SelectorFunc(func(ctx context.Context, _ []Wallet) (Wallet, error) {
		<-ctx.Done()
		return Wallet{}, ctx.Err()
	})
	s := newTestSession(t, WithSelector(selector), WithSigner(&fakeSigner{}), WithSelectionTimeout(20*time.Millisecond))
	mustAdd(t, s, walletA)

	if _, err := s.BeginUnlock(context.Background(), nil); !errors.Is(err, ErrUnlockTimeout) {
		t.Fatalf("BeginUnlock error = %v, want ErrUnlockTimeout", err)
	}
}

func TestBeginUnlock_SignatureChecks(t *testing.T) {
	tests := []struct {
		name     string
		answer   func(Challenge) *Signature
		verifier Verifier
	}{
		{
			name:   "nil signature",
			answer: func(Challenge) *Signature { return nil },
		},
		{
			name: "empty bytes",
			answer: func(ch Challenge) *Signature {
				return &Signature{Wallet: ch.Wallet.Key(), Message: ch.Message}
			},
		},
		{
			name: "other wallet",
			answer: func(ch Challenge) *Signature {
				sig := approve(ch)
				sig.Wallet = walletB.Key()
				return sig
			},
		},
		{
			name: "other message",
			answer: func(ch Challenge) *Signature {
				sig := approve(ch)
				sig.Message = []byte("something else")
				return sig
			},
		},
		{
			name:   "verifier rejects",
			answer: approve,
			verifier: VerifierFunc(func(Wallet, []byte, []byte) error {
				return ErrSignatureMismatch
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := &fakeSigner{answer: func(_ context.Context, ch Challenge) (*Signature, error) {
				return tt.answer(ch), nil
			}}
			opts := []Option{WithSigner(signer)}
			if tt.verifier != nil {
				opts = append(opts, WithVerifier(NetworkTypeEVM, tt.verifier))
			}
			s := newTestSession(t, opts...)
			mustAdd(t, s, walletA, walletB)

			_, err := s.BeginUnlock(context.Background(), &walletA)
			if !errors.Is(err, ErrUnlockDenied) || !errors.Is(err, ErrSignatureMismatch) {
				t.Fatalf("BeginUnlock error = %v, want denied signature mismatch", err)
			}
			if s.State() != Locked {
				t.Errorf("state = %v, want locked", s.State())
			}
		})
	}
}

func TestBeginUnlock_ChallengeMessage(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var got Challenge
	signer := &fakeSigner{answer: func(_ context.Context, ch Challenge) (*Signature, error) {
		got = ch
		return approve(ch), nil
	}}
	s := newTestSession(t, WithSigner(signer), WithClock(func() time.Time { return issued }))
	mustAdd(t, s, walletS)

	if _, err := s.BeginUnlock(context.Background(), &walletS); err != nil {
		t.Fatalf("BeginUnlock: %v", err)
	}

	want := fmt.Sprintf("Unlock wallet solana:%s\nChallenge: %s\nIssued At: 2026-03-01T12:00:00Z", walletS.Address, got.ID)
	if string(got.Message) != want {
		t.Errorf("message = %q, want %q", got.Message, want)
	}
	if got.ID == "" || !got.IssuedAt.Equal(issued) {
		t.Errorf("challenge = %+v", got)
	}
}

func TestBeginUnlock_Failures(t *testing.T) {
	t.Run("no signer", func(t *testing.T) {
		s := newTestSession(t)
		mustAdd(t, s, walletA)
		_, err := s.BeginUnlock(context.Background(), &walletA)
		if !errors.Is(err, ErrUnlockDenied) || !errors.Is(err, ErrNoSigner) {
			t.Fatalf("error = %v, want denied without signer", err)
		}
	})

	t.Run("unregistered target", func(t *testing.T) {
		signer := &fakeSigner{}
		s := newTestSession(t, WithSigner(signer))
		_, err := s.BeginUnlock(context.Background(), &walletA)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
		if signer.calls.Load() != 0 {
			t.Error("signer must not be challenged for an unknown wallet")
		}
	})

	t.Run("signer error", func(t *testing.T) {
		s := newTestSession(t, WithSigner(&fakeSigner{answer: func(context.Context, Challenge) (*Signature, error) {
			return nil, errors.New("device unplugged")
		}}))
		mustAdd(t, s, walletA)
		_, err := s.BeginUnlock(context.Background(), &walletA)
		if !errors.Is(err, ErrUnlockDenied) || !strings.Contains(err.Error(), "device unplugged") {
			t.Fatalf("error = %v, want denial carrying the cause", err)
		}
	})

	t.Run("selector picks unknown wallet", func(t *testing.T) {
		selector := SelectorFunc(func(context.Context, []Wallet) (Wallet, error) {
			return walletB, nil
		})
		s := newTestSession(t, WithSigner(&fakeSigner{}), WithSelector(selector))
		mustAdd(t, s, walletA)
		if _, err := s.BeginUnlock(context.Background(), nil); !errors.Is(err, ErrUnlockDenied) {
			t.Fatalf("error = %v, want ErrUnlockDenied", err)
		}
	})
}

func TestBeginUnlock_RemovedDuringAttempt(t *testing.T) {
	release := make(chan struct{})
	signer := gatedSigner(release)
	s := newTestSession(t, WithSigner(signer))
	mustAdd(t, s, walletA)

	result := make(chan connectResult, 1)
	go func() {
		w, err := s.BeginUnlock(context.Background(), &walletA)
		result <- connectResult{w, err}
	}()
	waitFor(t, "signer to be challenged", func() bool { return signer.calls.Load() == 1 })

	if _, err := s.RemoveWallet(context.Background(), walletA.Chain, walletA.Address); err != nil {
		t.Fatalf("RemoveWallet: %v", err)
	}
	close(release)

	if r := receive(t, result); !errors.Is(r.err, ErrNotFound) {
		t.Fatalf("BeginUnlock error = %v, want ErrNotFound", r.err)
	}
	if s.State() != Locked {
		t.Errorf("state = %v, want locked", s.State())
	}
}

func TestBeginUnlock_EventsCarryAttempt(t *testing.T) {
	rec := &eventRecorder{}
	s := newTestSession(t, append(rec.options(), WithSigner(&fakeSigner{}))...)
	mustAdd(t, s, walletA)

	if _, err := s.BeginUnlock(context.Background(), &walletA); err != nil {
		t.Fatalf("BeginUnlock: %v", err)
	}
	s.Lock()
	s.Lock()

	want := []SessionEventType{SessionEventWalletAdded, SessionEventUnlockAttempt, SessionEventUnlocked, SessionEventLocked}
	if got := rec.types(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	attempt, unlocked := rec.events[1], rec.events[2]
	if attempt.AttemptID == "" || attempt.AttemptID != unlocked.AttemptID {
		t.Errorf("attempt ids = %q, %q", attempt.AttemptID, unlocked.AttemptID)
	}
	if unlocked.From != Unlocking || unlocked.To != Unlocked {
		t.Errorf("unlocked transition = %v -> %v", unlocked.From, unlocked.To)
	}
}
