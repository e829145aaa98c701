// Package svm provides a local key signer and a challenge verifier for Solana
// wallets. Challenges are signed as raw ed25519 messages, the format Solana
// wallets use for signMessage.
package svm

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/0xWizop/incubator-sub002"
	"github.com/gagliardetto/solana-go"
)

// Approver is asked before every challenge is signed. Returning an error
// declines the unlock.
type Approver func(ctx context.Context, challenge walletsession.Challenge) error

// Signer implements walletsession.WalletSigner with an in-process ed25519 key.
type Signer struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	ref        walletsession.SignerRef
	priority   int
	approve    Approver
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new Solana signer with the given options.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if len(s.privateKey) != ed25519.PrivateKeySize {
		return nil, walletsession.ErrInvalidKey
	}
	if !bytes.Equal(ed25519.NewKeyFromSeed(s.privateKey[:ed25519.SeedSize]), s.privateKey) {
		return nil, fmt.Errorf("%w: public key does not match seed", walletsession.ErrInvalidKey)
	}
	s.publicKey = s.privateKey.PublicKey()
	if s.ref == "" {
		s.ref = walletsession.SignerRef("svm:" + s.publicKey.String())
	}

	return s, nil
}

// WithPrivateKey sets the private key from a base58 string.
func WithPrivateKey(base58Key string) SignerOption {
	return func(s *Signer) error {
		privateKey, err := solana.PrivateKeyFromBase58(base58Key)
		if err != nil {
			return walletsession.ErrInvalidKey
		}
		s.privateKey = privateKey
		return nil
	}
}

// WithKeygenFile loads a private key from a Solana keygen JSON file
// (a JSON array of 64 byte values).
func WithKeygenFile(path string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: %v", walletsession.ErrInvalidKeystore, err)
		}

		var keyBytes []byte
		if err := json.Unmarshal(data, &keyBytes); err != nil {
			return fmt.Errorf("%w: invalid JSON format", walletsession.ErrInvalidKeystore)
		}

		if len(keyBytes) != ed25519.PrivateKeySize {
			return fmt.Errorf("%w: invalid key length", walletsession.ErrInvalidKeystore)
		}

		s.privateKey = solana.PrivateKey(keyBytes)
		return nil
	}
}

// WithSignerRef sets the handle wallets use to reference this signer.
func WithSignerRef(ref walletsession.SignerRef) SignerOption {
	return func(s *Signer) error {
		s.ref = ref
		return nil
	}
}

// WithPriority sets the signer priority.
func WithPriority(priority int) SignerOption {
	return func(s *Signer) error {
		s.priority = priority
		return nil
	}
}

// WithApprover sets the confirmation step run before each challenge is signed.
func WithApprover(approve Approver) SignerOption {
	return func(s *Signer) error {
		s.approve = approve
		return nil
	}
}

// Address returns the signer's base58 public key.
func (s *Signer) Address() string {
	return s.publicKey.String()
}

// Wallet returns the wallet record for this key.
func (s *Signer) Wallet(label string) walletsession.Wallet {
	return walletsession.Wallet{
		Address:   s.publicKey.String(),
		Chain:     walletsession.ChainSolana,
		Label:     label,
		SignerRef: s.ref,
	}
}

// Ref implements walletsession.WalletSigner.
func (s *Signer) Ref() walletsession.SignerRef {
	return s.ref
}

// CanSign implements walletsession.WalletSigner.
func (s *Signer) CanSign(wallet walletsession.Wallet) bool {
	return wallet.Chain == walletsession.ChainSolana && wallet.Address == s.publicKey.String()
}

// Priority implements walletsession.WalletSigner.
func (s *Signer) Priority() int {
	return s.priority
}

// Challenge implements walletsession.Signer.
func (s *Signer) Challenge(ctx context.Context, challenge walletsession.Challenge) (*walletsession.Signature, error) {
	if !s.CanSign(challenge.Wallet) {
		return nil, fmt.Errorf("%w: %s", walletsession.ErrNoSigner, challenge.Wallet.Key())
	}

	if s.approve != nil {
		if err := s.approve(ctx, challenge); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := s.privateKey.Sign(challenge.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	return &walletsession.Signature{
		Wallet:  challenge.Wallet.Key(),
		Message: challenge.Message,
		Bytes:   sig[:],
	}, nil
}

// Verifier checks ed25519 challenge signatures against the wallet's public key.
type Verifier struct{}

// Verify implements walletsession.Verifier.
func (Verifier) Verify(wallet walletsession.Wallet, message, sig []byte) error {
	pub, err := solana.PublicKeyFromBase58(wallet.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", walletsession.ErrSignatureMismatch, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: invalid signature length: %d", walletsession.ErrSignatureMismatch, len(sig))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), message, sig) {
		return fmt.Errorf("%w: signature does not verify for %s", walletsession.ErrSignatureMismatch, wallet.Address)
	}
	return nil
}
