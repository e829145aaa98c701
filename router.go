package walletsession

import (
	"context"
	"sort"
	"sync"
)

// SignerRouter is a Signer that dispatches each challenge to the collaborator
// controlling the challenged wallet.
//
// Routing order:
//  1. The signer registered under the wallet's SignerRef
//  2. Signers whose CanSign accepts the wallet, by priority (lower number wins)
//  3. Registration order (for ties)
type SignerRouter struct {
	mu      sync.RWMutex
	signers []WalletSigner
}

// NewSignerRouter creates a router over the given signers.
func NewSignerRouter(signers ...WalletSigner) *SignerRouter {
	r := &SignerRouter{}
	for _, s := range signers {
		r.Add(s)
	}
	return r
}

// Add registers a signer. Later registrations lose priority ties.
func (r *SignerRouter) Add(s WalletSigner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signers = append(r.signers, s)
}

// Len returns the number of registered signers.
func (r *SignerRouter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.signers)
}

// Route returns the signer that should answer challenges for wallet.
func (r *SignerRouter) Route(wallet Wallet) (WalletSigner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.signers) == 0 {
		return nil, NewSessionError(ErrCodeSignerUnavailable, "no signers configured", ErrNoSigner)
	}

	if wallet.SignerRef != "" {
		for _, s := range r.signers {
			if s.Ref() == wallet.SignerRef {
				return s, nil
			}
		}
	}

	var candidates []signerCandidate
	for i, s := range r.signers {
		if !s.CanSign(wallet) {
			continue
		}
		candidates = append(candidates, signerCandidate{
			signer:   s,
			priority: s.Priority(),
			order:    i,
		})
	}

	if len(candidates) == 0 {
		return nil, NewSessionError(ErrCodeSignerUnavailable, "no signer can serve wallet", ErrNoSigner).
			WithDetails("chain", string(wallet.Chain)).
			WithDetails("address", wallet.Address).
			WithDetails("signerRef", string(wallet.SignerRef))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].order < candidates[j].order
	})

	return candidates[0].signer, nil
}

// Challenge implements Signer.
func (r *SignerRouter) Challenge(ctx context.Context, challenge Challenge) (*Signature, error) {
	s, err := r.Route(challenge.Wallet)
	if err != nil {
		return nil, err
	}
	return s.Challenge(ctx, challenge)
}

type signerCandidate struct {
	signer   WalletSigner
	priority int
	order    int
}
