package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/0xWizop/incubator-sub002"
	"github.com/0xWizop/incubator-sub002/encoding"
	"github.com/0xWizop/incubator-sub002/store"
	"github.com/0xWizop/incubator-sub002/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	walletA = walletsession.Wallet{Chain: walletsession.ChainBase, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Label: "A"}
	walletB = walletsession.Wallet{Chain: walletsession.ChainSolana, Address: "So11111111111111111111111111111111111111112", SignerRef: "phantom"}
	walletC = walletsession.Wallet{Chain: walletsession.ChainArbitrum, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"}
)

func TestMemory(t *testing.T) {
	storetest.RunKV(t, func(*testing.T) store.KV { return store.NewMemory() })
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	for _, driver := range []string{store.DriverMemory, store.DriverSQLite, store.DriverTOML} {
		t.Run(driver, func(t *testing.T) {
			kv, err := store.Open(driver, filepath.Join(dir, "wallets."+driver))
			require.NoError(t, err)
			require.NoError(t, kv.Close())
		})
	}

	_, err := store.Open("redis", "")
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestPersisterKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	p := store.NewPersister(kv, nil)

	for _, w := range []walletsession.Wallet{walletA, walletB, walletC} {
		require.NoError(t, p.Save(ctx, w))
	}
	require.NoError(t, p.Delete(ctx, walletB.Key()))
	require.NoError(t, p.Save(ctx, walletB))

	reopened := store.NewPersister(kv, nil)
	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []walletsession.Wallet{walletA, walletC, walletB}, loaded)

	require.NoError(t, reopened.Save(ctx, walletsession.Wallet{Chain: walletsession.ChainEthereum, Address: walletA.Address}))
	loaded, err = reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	assert.Equal(t, walletsession.ChainEthereum, loaded[3].Chain)
}

func TestPersisterSeedsSequenceBeforeFirstSave(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, store.NewPersister(kv, nil).Save(ctx, walletA))

	p := store.NewPersister(kv, nil)
	require.NoError(t, p.Save(ctx, walletB))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []walletsession.Wallet{walletA, walletB}, loaded)
}

func TestPersisterSkipsBadRecords(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	p := store.NewPersister(kv, nil)
	require.NoError(t, p.Save(ctx, walletA))

	misplaced, err := encoding.EncodeRecord(encoding.Record{Seq: 9, Wallet: walletB})
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, "base:0xdeadbeef", misplaced))
	require.NoError(t, kv.Put(ctx, "solana:garbage", "not base64!"))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []walletsession.Wallet{walletA}, loaded)
}

func TestPersisterClear(t *testing.T) {
	ctx := context.Background()
	p := store.NewPersister(store.NewMemory(), nil)
	require.NoError(t, p.Save(ctx, walletA))
	require.NoError(t, p.Clear(ctx))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestPersisterRestoresSession(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wallets.db")

	kv, err := store.Open(store.DriverSQLite, path)
	require.NoError(t, err)
	p := store.NewPersister(kv, nil)

	first, err := walletsession.New(walletsession.WithPersister(p))
	require.NoError(t, err)
	_, err = first.AddWallet(ctx, walletA)
	require.NoError(t, err)
	_, err = first.AddWallet(ctx, walletB)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.NoError(t, p.Close())

	kv, err = store.Open(store.DriverSQLite, path)
	require.NoError(t, err)
	defer kv.Close()

	second, err := walletsession.New(walletsession.WithPersister(store.NewPersister(kv, nil)))
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Restore(ctx))

	var restored []walletsession.Wallet
	for w := range second.Wallets() {
		restored = append(restored, w)
	}
	assert.Equal(t, []walletsession.Wallet{walletA, walletB}, restored)
	assert.Equal(t, walletsession.Locked, second.State())
}
