package walletsession

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultUnlockTimeout bounds the signer round-trip of one unlock attempt.
	DefaultUnlockTimeout = 60 * time.Second

	// DefaultSelectionTimeout bounds how long the selection modal may stay open.
	DefaultSelectionTimeout = 5 * time.Minute
)

// Option configures a Session.
type Option func(*Session) error

// WithSigner sets the signer collaborator answering unlock challenges.
// Use a SignerRouter to serve several signers.
func WithSigner(signer Signer) Option {
	return func(s *Session) error {
		s.signer = signer
		return nil
	}
}

// WithVerifier verifies challenge signatures for wallets of the given network type.
func WithVerifier(networkType NetworkType, verifier Verifier) Option {
	return func(s *Session) error {
		if networkType == NetworkTypeUnknown {
			return fmt.Errorf("verifier: unknown network type")
		}
		s.verifiers[networkType] = verifier
		return nil
	}
}

// WithModal sets the UI collaborator presented once per connect episode.
func WithModal(modal Modal) Option {
	return func(s *Session) error {
		s.modal = modal
		return nil
	}
}

// WithSelector sets the selector used by BeginUnlock calls without a target
// that do not come through the broker.
func WithSelector(selector Selector) Option {
	return func(s *Session) error {
		s.selector = selector
		return nil
	}
}

// WithUnlockTimeout sets the gate deadline for the signer round-trip.
// Zero disables the deadline.
func WithUnlockTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d < 0 {
			return fmt.Errorf("unlock timeout cannot be negative: %s", d)
		}
		s.unlockTimeout = d
		return nil
	}
}

// WithSelectionTimeout sets how long wallet selection may take.
// Zero disables the deadline.
func WithSelectionTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d < 0 {
			return fmt.Errorf("selection timeout cannot be negative: %s", d)
		}
		s.selectionTimeout = d
		return nil
	}
}

// WithRechallengeOnSwitch controls whether switching the active wallet while
// unlocked issues a new signer challenge. When disabled, switching between
// wallets backed by the same signer skips the challenge.
func WithRechallengeOnSwitch(enabled bool) Option {
	return func(s *Session) error {
		s.rechallengeOnSwitch = enabled
		return nil
	}
}

// WithPersister stores registry entries across restarts.
func WithPersister(p Persister) Option {
	return func(s *Session) error {
		s.persister = p
		return nil
	}
}

// WithNormalizer validates and canonicalizes wallets before registration.
func WithNormalizer(n Normalizer) Option {
	return func(s *Session) error {
		s.normalize = n
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithEventCallback registers a callback for one event type.
func WithEventCallback(eventType SessionEventType, cb SessionCallback) Option {
	return func(s *Session) error {
		switch eventType {
		case SessionEventUnlockAttempt, SessionEventUnlocked, SessionEventUnlockFailed,
			SessionEventLocked, SessionEventWalletAdded, SessionEventWalletRemoved:
		default:
			return fmt.Errorf("unknown session event type: %s", eventType)
		}
		s.callbacks[eventType] = append(s.callbacks[eventType], cb)
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) error {
		s.now = now
		return nil
	}
}
