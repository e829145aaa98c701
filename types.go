package walletsession

import (
	"fmt"
	"strings"
	"time"
)

// SignerRef is an opaque handle to the external signer that can produce
// signatures for a wallet. The core never dereferences it; it is only used to
// route challenges.
type SignerRef string

// Wallet is an immutable identity record for an imported or derived wallet.
type Wallet struct {
	// Address is the chain-specific identifier: base58 for Solana, 0x-prefixed
	// hex for EVM chains.
	Address string `json:"address"`

	// Chain disambiguates network context. EVM chains share the address
	// space, so the same address on base and arbitrum are distinct wallets.
	Chain Chain `json:"chain"`

	// Label is an optional user-facing display name.
	Label string `json:"label,omitempty"`

	// SignerRef identifies the signer holding this wallet's key material.
	SignerRef SignerRef `json:"signerRef,omitempty"`
}

// Key returns the (chain, address) identity of the wallet.
func (w Wallet) Key() WalletKey {
	return NewWalletKey(w.Chain, w.Address)
}

// DisplayName returns the label, or a shortened address when unlabeled.
func (w Wallet) DisplayName() string {
	if w.Label != "" {
		return w.Label
	}
	return ShortAddress(w.Address)
}

// IsZero reports whether w is the empty wallet.
func (w Wallet) IsZero() bool {
	return w.Address == "" && w.Chain == ""
}

// WalletKey is the (chain, address) pair that uniquely identifies a wallet in
// the registry. EVM addresses are compared case-insensitively, so the key
// stores them lowercased.
type WalletKey struct {
	Chain   Chain
	Address string
}

// NewWalletKey builds the canonical key for chain and address.
func NewWalletKey(chain Chain, address string) WalletKey {
	address = strings.TrimSpace(address)
	if NetworkTypeOf(chain) == NetworkTypeEVM {
		address = strings.ToLower(address)
	}
	return WalletKey{Chain: chain, Address: address}
}

// String returns the "<chain>:<address>" form used as the persistence key.
func (k WalletKey) String() string {
	return string(k.Chain) + ":" + k.Address
}

// ParseWalletKey parses the "<chain>:<address>" form.
func ParseWalletKey(s string) (WalletKey, error) {
	chain, address, ok := strings.Cut(s, ":")
	if !ok || address == "" {
		return WalletKey{}, fmt.Errorf("%w: malformed wallet key %q", ErrInvalidWallet, s)
	}
	c, err := ParseChain(chain)
	if err != nil {
		return WalletKey{}, err
	}
	return NewWalletKey(c, address), nil
}

// ShortAddress abbreviates an address as "abcd…wxyz".
func ShortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

// LockState is the lock gate state.
type LockState int

const (
	// Locked means no signing-capable operation may proceed.
	Locked LockState = iota
	// Unlocking is the transient state while a signer challenge is in flight.
	Unlocking
	// Unlocked means the active wallet is authorized to sign.
	Unlocked
)

func (s LockState) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	case Unlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("LockState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s LockState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LockState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "locked":
		*s = Locked
	case "unlocking":
		*s = Unlocking
	case "unlocked":
		*s = Unlocked
	default:
		return fmt.Errorf("unknown lock state %q", b)
	}
	return nil
}

// Challenge is the unlock challenge issued to a signer for one wallet.
type Challenge struct {
	// ID uniquely identifies this challenge.
	ID string

	// Wallet is the wallet the signer must prove control of.
	Wallet Wallet

	// Message is the exact byte string to sign.
	Message []byte

	// IssuedAt is when the gate created the challenge.
	IssuedAt time.Time
}

// Signature is a signer's response to a Challenge.
type Signature struct {
	// Wallet is the key the signature was produced for.
	Wallet WalletKey

	// Message echoes the signed message.
	Message []byte

	// Bytes is the raw signature: 65-byte [R || S || V] for EVM, 64-byte
	// ed25519 for Solana.
	Bytes []byte
}

// Projection is the read-only consumer view of the session.
type Projection struct {
	// Address is the active wallet's address, or empty.
	Address string `json:"address"`

	// Chain is the active wallet's chain, or empty.
	Chain Chain `json:"chain,omitempty"`

	// Label is the active wallet's label, or empty.
	Label string `json:"label,omitempty"`

	// IsConnected is true when the session is unlocked with an active wallet.
	IsConnected bool `json:"isConnected"`

	// LockState is the current gate state.
	LockState LockState `json:"lockState"`
}
