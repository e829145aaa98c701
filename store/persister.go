package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/0xWizop/incubator-sub002"
	"github.com/0xWizop/incubator-sub002/encoding"
)

// Persister implements walletsession.Persister over a KV.
type Persister struct {
	kv     KV
	logger *slog.Logger

	mu     sync.Mutex
	seq    uint64
	seeded bool
}

var _ walletsession.Persister = (*Persister)(nil)

// NewPersister wraps kv. A nil logger uses slog.Default().
func NewPersister(kv KV, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{kv: kv, logger: logger}
}

// Load returns the stored wallets in insertion order. Undecodable records are
// skipped with a warning.
func (p *Persister) Load(ctx context.Context) ([]walletsession.Wallet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.records(ctx)
	if err != nil {
		return nil, err
	}

	wallets := make([]walletsession.Wallet, len(records))
	for i, r := range records {
		wallets[i] = r.Wallet
	}
	return wallets, nil
}

// Save stores wallet under its key with the next sequence number.
func (p *Persister) Save(ctx context.Context, wallet walletsession.Wallet) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.seeded {
		if _, err := p.records(ctx); err != nil {
			return err
		}
	}

	encoded, err := encoding.EncodeRecord(encoding.Record{Seq: p.seq + 1, Wallet: wallet})
	if err != nil {
		return err
	}
	if err := p.kv.Put(ctx, wallet.Key().String(), encoded); err != nil {
		return fmt.Errorf("save wallet %s: %w", wallet.Key(), err)
	}
	p.seq++
	return nil
}

// Delete removes the wallet stored under key.
func (p *Persister) Delete(ctx context.Context, key walletsession.WalletKey) error {
	if err := p.kv.Delete(ctx, key.String()); err != nil {
		return fmt.Errorf("delete wallet %s: %w", key, err)
	}
	return nil
}

// Clear removes every stored wallet.
func (p *Persister) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.kv.Clear(ctx); err != nil {
		return fmt.Errorf("clear wallets: %w", err)
	}
	p.seq = 0
	p.seeded = true
	return nil
}

// Close closes the underlying KV.
func (p *Persister) Close() error {
	return p.kv.Close()
}

// records reads and orders every record, advancing seq past the highest one.
// Requires p.mu.
func (p *Persister) records(ctx context.Context) ([]encoding.Record, error) {
	all, err := p.kv.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	records := make([]encoding.Record, 0, len(all))
	for key, value := range all {
		r, err := encoding.DecodeRecord(value)
		if err != nil {
			p.logger.Warn("skipping unreadable wallet record", "key", key, "error", err)
			continue
		}
		if r.Wallet.Key().String() != key {
			p.logger.Warn("skipping wallet record stored under wrong key", "key", key, "wallet", r.Wallet.Key().String())
			continue
		}
		records = append(records, r)
		p.seq = max(p.seq, r.Seq)
	}
	p.seeded = true

	slices.SortFunc(records, func(a, b encoding.Record) int {
		return cmp.Or(cmp.Compare(a.Seq, b.Seq), cmp.Compare(a.Wallet.Key().String(), b.Wallet.Key().String()))
	})
	return records, nil
}
