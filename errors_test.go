package walletsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorDefinitions(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"DuplicateWallet", ErrDuplicateWallet, "walletsession: wallet already registered"},
		{"NotFound", ErrNotFound, "walletsession: wallet not found"},
		{"UnlockDenied", ErrUnlockDenied, "walletsession: unlock denied"},
		{"UnlockTimeout", ErrUnlockTimeout, "walletsession: unlock timed out"},
		{"UnlockInterrupted", ErrUnlockInterrupted, "walletsession: unlock interrupted by lock"},
		{"NoSigner", ErrNoSigner, "walletsession: no signer for wallet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error message mismatch: got %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestSessionError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewSessionError(ErrCodePersistence, "failed to persist wallet", cause).
		WithDetails("wallet", "base:0xabc")

	if !strings.Contains(err.Error(), "failed to persist wallet") || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Error() = %q, want message and cause", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Details["wallet"] != "base:0xabc" {
		t.Errorf("Details[wallet] = %v", err.Details["wallet"])
	}

	bare := NewSessionError(ErrCodeNotFound, "missing", nil)
	if bare.Error() != "missing" {
		t.Errorf("Error() = %q, want %q", bare.Error(), "missing")
	}
	if bare.Details == nil {
		t.Error("Details map should be initialized")
	}
}

func TestIsConnectionFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"denied", ErrUnlockDenied, true},
		{"timeout", ErrUnlockTimeout, true},
		{"interrupted", ErrUnlockInterrupted, true},
		{"wrapped denied", fmt.Errorf("%w: %w", ErrUnlockDenied, ErrSignatureMismatch), true},
		{"duplicate", ErrDuplicateWallet, false},
		{"not found", ErrNotFound, false},
		{"context", context.Canceled, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionFailure(tt.err); got != tt.want {
				t.Errorf("IsConnectionFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{fmt.Errorf("%w: base:0x1", ErrDuplicateWallet), ErrCodeDuplicateWallet},
		{fmt.Errorf("%w: base:0x1", ErrNotFound), ErrCodeNotFound},
		{ErrUnsupportedChain, ErrCodeInvalidWallet},
		{ErrUnlockTimeout, ErrCodeUnlockTimeout},
		{ErrUnlockInterrupted, ErrCodeUnlockAborted},
		{fmt.Errorf("%w: %w", ErrUnlockDenied, ErrNoSigner), ErrCodeUnlockDenied},
		{NewSessionError(ErrCodePersistence, "x", nil), ErrCodePersistence},
		{errors.New("other"), ""},
	}

	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
