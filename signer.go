package walletsession

import "context"

// Signer is the external collaborator that holds key material. The core only
// ever asks it to answer an unlock challenge.
//
// Implementations return ErrUnlockDenied (or an error wrapping it) when the
// user declines, and should honor ctx so the gate deadline can interrupt a
// pending prompt. Any other error is treated as a denial.
type Signer interface {
	Challenge(ctx context.Context, challenge Challenge) (*Signature, error)
}

// WalletSigner is a Signer that can describe which wallets it serves.
// It is what SignerRouter routes between.
type WalletSigner interface {
	Signer

	// Ref returns the handle wallets use to name this signer.
	Ref() SignerRef

	// CanSign reports whether this signer controls the wallet's key.
	CanSign(wallet Wallet) bool

	// Priority orders fallback candidates. Lower numbers win (1 > 2 > 3).
	Priority() int
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, challenge Challenge) (*Signature, error)

// Challenge implements Signer.
func (f SignerFunc) Challenge(ctx context.Context, challenge Challenge) (*Signature, error) {
	return f(ctx, challenge)
}

// Verifier checks a challenge signature against the wallet address.
type Verifier interface {
	Verify(wallet Wallet, message, signature []byte) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(wallet Wallet, message, signature []byte) error

// Verify implements Verifier.
func (f VerifierFunc) Verify(wallet Wallet, message, signature []byte) error {
	return f(wallet, message, signature)
}

// Selector picks the wallet to unlock when BeginUnlock is called without a
// target. Returning ErrUnlockDenied means the user cancelled.
type Selector interface {
	Select(ctx context.Context, wallets []Wallet) (Wallet, error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(ctx context.Context, wallets []Wallet) (Wallet, error)

// Select implements Selector.
func (f SelectorFunc) Select(ctx context.Context, wallets []Wallet) (Wallet, error) {
	return f(ctx, wallets)
}

// Normalizer validates a wallet before it enters the registry and returns its
// canonical form. See validation.NormalizeWallet.
type Normalizer func(Wallet) (Wallet, error)

// Persister stores the registry's (chain, address, label, signerRef) entries
// across restarts. No secret material passes through it.
type Persister interface {
	// Load returns the persisted wallets in insertion order.
	Load(ctx context.Context) ([]Wallet, error)

	// Save stores a newly added wallet.
	Save(ctx context.Context, wallet Wallet) error

	// Delete removes the wallet stored under key.
	Delete(ctx context.Context, key WalletKey) error

	// Clear removes every stored wallet.
	Clear(ctx context.Context) error
}
