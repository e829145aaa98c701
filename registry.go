package walletsession

import (
	"fmt"
	"iter"
	"slices"
)

// Registry is the ordered record of known wallets. Insertion order is display
// order and (chain, address) pairs are unique.
//
// Registry holds no lock and no signer logic. The Session guards it and
// couples removals with clearing the active wallet.
type Registry struct {
	wallets []Wallet
	index   map[WalletKey]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[WalletKey]int)}
}

// Add appends wallet, failing with ErrDuplicateWallet when its (chain, address)
// is already present.
func (r *Registry) Add(wallet Wallet) (Wallet, error) {
	key := wallet.Key()
	if _, ok := r.index[key]; ok {
		return Wallet{}, fmt.Errorf("%w: %s", ErrDuplicateWallet, key)
	}
	r.index[key] = len(r.wallets)
	r.wallets = append(r.wallets, wallet)
	return wallet, nil
}

// Remove deletes the wallet registered under (chain, address), failing with
// ErrNotFound when absent.
func (r *Registry) Remove(chain Chain, address string) (Wallet, error) {
	key := NewWalletKey(chain, address)
	i, ok := r.index[key]
	if !ok {
		return Wallet{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	removed := r.wallets[i]
	r.wallets = slices.Delete(r.wallets, i, i+1)
	delete(r.index, key)
	for j := i; j < len(r.wallets); j++ {
		r.index[r.wallets[j].Key()] = j
	}
	return removed, nil
}

// Get returns the wallet registered under key.
func (r *Registry) Get(key WalletKey) (Wallet, bool) {
	i, ok := r.index[key]
	if !ok {
		return Wallet{}, false
	}
	return r.wallets[i], true
}

// Contains reports whether key is registered.
func (r *Registry) Contains(key WalletKey) bool {
	_, ok := r.index[key]
	return ok
}

// List returns a lazy, restartable sequence of wallets in insertion order,
// restricted to the given chains when any are passed.
//
// The sequence reads the registry while it is iterated; callers that may
// mutate concurrently iterate through Session.Wallets instead.
func (r *Registry) List(chains ...Chain) iter.Seq[Wallet] {
	return func(yield func(Wallet) bool) {
		for _, w := range r.wallets {
			if len(chains) > 0 && !slices.Contains(chains, w.Chain) {
				continue
			}
			if !yield(w) {
				return
			}
		}
	}
}

// Len returns the number of registered wallets.
func (r *Registry) Len() int {
	return len(r.wallets)
}

// Reset removes every wallet.
func (r *Registry) Reset() {
	r.wallets = nil
	r.index = make(map[WalletKey]int)
}
