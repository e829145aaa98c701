package walletsession

import "time"

// SessionEventType is the kind of session lifecycle event.
type SessionEventType string

const (
	// SessionEventUnlockAttempt fires when the gate enters Unlocking.
	SessionEventUnlockAttempt SessionEventType = "unlock_attempt"

	// SessionEventUnlocked fires when a wallet becomes active.
	SessionEventUnlocked SessionEventType = "unlocked"

	// SessionEventUnlockFailed fires when an unlock attempt resolves with an error.
	SessionEventUnlockFailed SessionEventType = "unlock_failed"

	// SessionEventLocked fires on lock() and sign-out.
	SessionEventLocked SessionEventType = "locked"

	// SessionEventWalletAdded fires after a wallet is registered.
	SessionEventWalletAdded SessionEventType = "wallet_added"

	// SessionEventWalletRemoved fires after a wallet is removed.
	SessionEventWalletRemoved SessionEventType = "wallet_removed"
)

// SessionEvent describes a session lifecycle event.
type SessionEvent struct {
	Type      SessionEventType
	Timestamp time.Time

	// Wallet is the wallet the event concerns, if any.
	Wallet Wallet

	// From and To are the lock states around a transition.
	From LockState
	To   LockState

	// AttemptID identifies the unlock attempt for unlock events.
	AttemptID string

	// Error is set for SessionEventUnlockFailed.
	Error error

	// Duration is the unlock attempt duration for unlock outcome events.
	Duration time.Duration
}

// SessionCallback receives session events. Callbacks run synchronously on the
// goroutine that caused the event, after the session lock is released.
type SessionCallback func(SessionEvent)
