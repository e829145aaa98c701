package walletsession

import (
	"errors"
	"fmt"
)

// Registry errors. These are synchronous and recoverable by retrying with
// corrected input; through the normal UI flow they indicate a programming
// error in the calling surface.
var (
	// ErrDuplicateWallet indicates the (chain, address) pair is already registered.
	ErrDuplicateWallet = errors.New("walletsession: wallet already registered")

	// ErrNotFound indicates no wallet is registered under the (chain, address) pair.
	ErrNotFound = errors.New("walletsession: wallet not found")

	// ErrInvalidWallet indicates a wallet record failed validation.
	ErrInvalidWallet = errors.New("walletsession: invalid wallet")

	// ErrUnsupportedChain indicates an unrecognized chain identifier.
	ErrUnsupportedChain = errors.New("walletsession: unsupported chain")
)

// Gate errors. They are delivered to every waiter of an unlock episode and
// are never retried automatically; the user must connect again.
var (
	// ErrUnlockDenied indicates the user or signer declined the unlock.
	ErrUnlockDenied = errors.New("walletsession: unlock denied")

	// ErrUnlockTimeout indicates the signer did not answer before the deadline.
	ErrUnlockTimeout = errors.New("walletsession: unlock timed out")

	// ErrUnlockInterrupted indicates lock() was called while the unlock was
	// in flight and its resolution was discarded.
	ErrUnlockInterrupted = errors.New("walletsession: unlock interrupted by lock")

	// ErrNotUnlocked indicates an operation that needs an unlocked session.
	ErrNotUnlocked = errors.New("walletsession: session is locked")
)

// Signer errors.
var (
	// ErrNoSigner indicates no signer collaborator can serve the wallet.
	ErrNoSigner = errors.New("walletsession: no signer for wallet")

	// ErrSignatureMismatch indicates a challenge signature did not verify
	// against the wallet address.
	ErrSignatureMismatch = errors.New("walletsession: challenge signature does not match wallet")

	// ErrInvalidKey indicates an invalid private key was handed to a local signer.
	ErrInvalidKey = errors.New("walletsession: invalid private key")

	// ErrInvalidKeystore indicates an unreadable or undecryptable keystore file.
	ErrInvalidKeystore = errors.New("walletsession: invalid keystore file")

	// ErrInvalidMnemonic indicates an invalid BIP-39 mnemonic phrase.
	ErrInvalidMnemonic = errors.New("walletsession: invalid mnemonic phrase")
)

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("walletsession: session closed")

// ErrorCode classifies a SessionError for programmatic handling.
type ErrorCode string

const (
	ErrCodeDuplicateWallet   ErrorCode = "DUPLICATE_WALLET"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidWallet     ErrorCode = "INVALID_WALLET"
	ErrCodeUnlockDenied      ErrorCode = "UNLOCK_DENIED"
	ErrCodeUnlockTimeout     ErrorCode = "UNLOCK_TIMEOUT"
	ErrCodeUnlockAborted     ErrorCode = "UNLOCK_INTERRUPTED"
	ErrCodeNotUnlocked       ErrorCode = "NOT_UNLOCKED"
	ErrCodeClosed            ErrorCode = "SESSION_CLOSED"
	ErrCodePersistence       ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeSignerUnavailable ErrorCode = "SIGNER_UNAVAILABLE"
)

// SessionError carries a code, a message and optional details alongside the
// underlying cause.
type SessionError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]interface{}
}

// NewSessionError creates a SessionError wrapping err.
func NewSessionError(code ErrorCode, message string, err error) *SessionError {
	return &SessionError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// WithDetails adds a key/value pair to the error details.
func (e *SessionError) WithDetails(key string, value interface{}) *SessionError {
	e.Details[key] = value
	return e
}

// IsConnectionFailure reports whether err is one of the gate outcomes that the
// UI collapses into a single "connection failed, try again" signal.
func IsConnectionFailure(err error) bool {
	return errors.Is(err, ErrUnlockDenied) ||
		errors.Is(err, ErrUnlockTimeout) ||
		errors.Is(err, ErrUnlockInterrupted)
}

// CodeOf maps err to the ErrorCode of the first matching sentinel.
func CodeOf(err error) ErrorCode {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code
	}
	switch {
	case errors.Is(err, ErrDuplicateWallet):
		return ErrCodeDuplicateWallet
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrInvalidWallet), errors.Is(err, ErrUnsupportedChain):
		return ErrCodeInvalidWallet
	case errors.Is(err, ErrUnlockTimeout):
		return ErrCodeUnlockTimeout
	case errors.Is(err, ErrUnlockInterrupted):
		return ErrCodeUnlockAborted
	case errors.Is(err, ErrUnlockDenied):
		return ErrCodeUnlockDenied
	case errors.Is(err, ErrNoSigner):
		return ErrCodeSignerUnavailable
	case errors.Is(err, ErrNotUnlocked):
		return ErrCodeNotUnlocked
	case errors.Is(err, ErrClosed):
		return ErrCodeClosed
	default:
		return ""
	}
}
