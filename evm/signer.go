// Package evm provides a local key signer and a challenge verifier for
// EVM-compatible wallets (ethereum, base, arbitrum).
//
// Challenges are signed as EIP-191 personal messages, so the signature a
// wallet produces here matches what browser and hardware wallets produce for
// personal_sign.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"slices"
	"strings"

	"github.com/0xWizop/incubator-sub002"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Approver is asked before every challenge is signed. Returning an error
// declines the unlock; returning walletsession.ErrUnlockDenied (or ctx.Err())
// is the conventional way to do so.
type Approver func(ctx context.Context, challenge walletsession.Challenge) error

// Signer implements walletsession.WalletSigner with an in-process secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	ref        walletsession.SignerRef
	chains     []walletsession.Chain
	priority   int
	approve    Approver
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new EVM signer with the given options.
// It serves every EVM chain unless WithChains narrows the set.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.privateKey == nil {
		return nil, walletsession.ErrInvalidKey
	}
	s.address = crypto.PubkeyToAddress(s.privateKey.PublicKey)

	if len(s.chains) == 0 {
		for _, cfg := range walletsession.Chains() {
			if cfg.Type == walletsession.NetworkTypeEVM {
				s.chains = append(s.chains, cfg.Chain)
			}
		}
	}
	if s.ref == "" {
		s.ref = walletsession.SignerRef("evm:" + strings.ToLower(s.address.Hex()))
	}

	return s, nil
}

// WithPrivateKey sets the private key from a hex string.
func WithPrivateKey(hexKey string) SignerOption {
	return func(s *Signer) error {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
		if err != nil {
			return walletsession.ErrInvalidKey
		}
		s.privateKey = privateKey
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

// WithChains restricts the signer to the given EVM chains.
func WithChains(chains ...walletsession.Chain) SignerOption {
	return func(s *Signer) error {
		for _, c := range chains {
			if walletsession.NetworkTypeOf(c) != walletsession.NetworkTypeEVM {
				return fmt.Errorf("%w: %s is not an EVM chain", walletsession.ErrUnsupportedChain, c)
			}
		}
		s.chains = chains
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

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address {
	return s.address
}

// Wallet returns the wallet record for this key on chain.
func (s *Signer) Wallet(chain walletsession.Chain, label string) walletsession.Wallet {
	return walletsession.Wallet{
		Address:   s.address.Hex(),
		Chain:     chain,
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
	return slices.Contains(s.chains, wallet.Chain) && strings.EqualFold(wallet.Address, s.address.Hex())
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

	sig, err := SignMessage(s.privateKey, challenge.Message)
	if err != nil {
		return nil, err
	}

	return &walletsession.Signature{
		Wallet:  challenge.Wallet.Key(),
		Message: challenge.Message,
		Bytes:   sig,
	}, nil
}

// SignMessage signs message as an EIP-191 personal message and returns the
// 65-byte [R || S || V] signature with V in {27, 28}.
func SignMessage(privateKey *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverAddress returns the address that produced sig over the EIP-191
// personal message. V may be {0, 1} or {27, 28}.
func RecoverAddress(message, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verifier checks EIP-191 challenge signatures by public key recovery.
type Verifier struct{}

// Verify implements walletsession.Verifier.
func (Verifier) Verify(wallet walletsession.Wallet, message, sig []byte) error {
	addr, err := RecoverAddress(message, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", walletsession.ErrSignatureMismatch, err)
	}
	if !strings.EqualFold(addr.Hex(), wallet.Address) {
		return fmt.Errorf("%w: recovered %s", walletsession.ErrSignatureMismatch, addr.Hex())
	}
	return nil
}
