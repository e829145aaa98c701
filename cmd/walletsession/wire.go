package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/0xWizop/incubator-sub002"
	"github.com/0xWizop/incubator-sub002/cdp"
	"github.com/0xWizop/incubator-sub002/config"
	"github.com/0xWizop/incubator-sub002/evm"
	"github.com/0xWizop/incubator-sub002/store"
	"github.com/0xWizop/incubator-sub002/svm"
	"github.com/0xWizop/incubator-sub002/validation"
)

type app struct {
	cfg       config.Config
	logger    *slog.Logger
	session   *walletsession.Session
	persister *store.Persister
	evm       *evm.Signer
	svm       *svm.Signer
	hosted    []*cdp.Signer
}

// wireApp builds a restored session from cfg. modal may be nil.
func wireApp(ctx context.Context, cfg config.Config, logOut io.Writer, modal walletsession.Modal) (*app, error) {
	logger := cfg.Log.NewLogger(logOut)

	a := &app{cfg: cfg, logger: logger}
	router, err := a.wireSigners(ctx, cfg.Signers)
	if err != nil {
		return nil, err
	}

	kv, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("wire store: %w", err)
	}
	a.persister = store.NewPersister(kv, logger)

	opts := append(cfg.SessionOptions(),
		walletsession.WithLogger(logger),
		walletsession.WithPersister(a.persister),
		walletsession.WithNormalizer(validation.NormalizeWallet),
		walletsession.WithSigner(router),
		walletsession.WithVerifier(walletsession.NetworkTypeEVM, evm.Verifier{}),
		walletsession.WithVerifier(walletsession.NetworkTypeSVM, svm.Verifier{}),
	)
	if modal != nil {
		opts = append(opts, walletsession.WithModal(modal))
	}

	a.session, err = walletsession.New(opts...)
	if err != nil {
		_ = a.persister.Close()
		return nil, fmt.Errorf("wire session: %w", err)
	}
	if err := a.session.Restore(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("restore wallets: %w", err)
	}
	logger.Debug("session ready",
		"store", cfg.Store.Driver,
		"wallets", len(collect(a.session)),
		"signers", router.Len())
	return a, nil
}

func (a *app) wireSigners(ctx context.Context, cfg config.SignersConfig) (*walletsession.SignerRouter, error) {
	router := walletsession.NewSignerRouter()

	if cfg.EVM.Enabled() {
		var opts []evm.SignerOption
		switch {
		case cfg.EVM.PrivateKey != "":
			opts = append(opts, evm.WithPrivateKey(cfg.EVM.PrivateKey))
		case cfg.EVM.Keystore != "":
			opts = append(opts, evm.WithKeystore(cfg.EVM.Keystore, cfg.EVM.KeystorePassword))
		default:
			opts = append(opts, evm.WithMnemonic(cfg.EVM.Mnemonic, cfg.EVM.AccountIndex))
		}
		if len(cfg.EVM.Chains) > 0 {
			chains := make([]walletsession.Chain, 0, len(cfg.EVM.Chains))
			for _, raw := range cfg.EVM.Chains {
				chain, err := walletsession.ParseChain(raw)
				if err != nil {
					return nil, fmt.Errorf("signers.evm.chains: %w", err)
				}
				chains = append(chains, chain)
			}
			opts = append(opts, evm.WithChains(chains...))
		}
		signer, err := evm.NewSigner(opts...)
		if err != nil {
			return nil, fmt.Errorf("wire evm signer: %w", err)
		}
		a.evm = signer
		router.Add(signer)
	}

	if cfg.SVM.Enabled() {
		var opt svm.SignerOption
		if cfg.SVM.PrivateKey != "" {
			opt = svm.WithPrivateKey(cfg.SVM.PrivateKey)
		} else {
			opt = svm.WithKeygenFile(cfg.SVM.KeygenFile)
		}
		signer, err := svm.NewSigner(opt)
		if err != nil {
			return nil, fmt.Errorf("wire svm signer: %w", err)
		}
		a.svm = signer
		router.Add(signer)
	}

	if cfg.CDP.Enabled() {
		hosted, err := wireCDP(ctx, cfg.CDP)
		if err != nil {
			return nil, err
		}
		for _, signer := range hosted {
			router.Add(signer)
		}
		a.hosted = hosted
	}
	return router, nil
}

func wireCDP(ctx context.Context, cfg config.CDPSignerConfig) ([]*cdp.Signer, error) {
	auth, err := cdp.NewAuth(cfg.APIKeyName, cfg.APIKeySecret, cfg.WalletSecret)
	if err != nil {
		return nil, fmt.Errorf("wire cdp signer: %w", err)
	}
	var opts []cdp.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, cdp.WithBaseURL(cfg.BaseURL))
	}
	client, err := cdp.NewClient(auth, opts...)
	if err != nil {
		return nil, fmt.Errorf("wire cdp signer: %w", err)
	}

	var signers []*cdp.Signer
	for _, acct := range []struct {
		nt   walletsession.NetworkType
		name string
	}{
		{walletsession.NetworkTypeEVM, cfg.EVMAccount},
		{walletsession.NetworkTypeSVM, cfg.SVMAccount},
	} {
		if acct.name == "" {
			continue
		}
		account, err := client.GetOrCreateAccount(ctx, acct.nt, acct.name)
		if err != nil {
			return nil, fmt.Errorf("wire cdp %s account: %w", acct.nt, err)
		}
		signer, err := cdp.NewSigner(account, cdp.WithClient(client))
		if err != nil {
			return nil, fmt.Errorf("wire cdp signer: %w", err)
		}
		signers = append(signers, signer)
	}
	return signers, nil
}

// signerWallet returns the wallet a configured local signer controls on chain.
func (a *app) signerWallet(chain walletsession.Chain, label string) (walletsession.Wallet, error) {
	switch walletsession.NetworkTypeOf(chain) {
	case walletsession.NetworkTypeEVM:
		if a.evm != nil && a.evm.CanSign(a.evm.Wallet(chain, label)) {
			return a.evm.Wallet(chain, label), nil
		}
	case walletsession.NetworkTypeSVM:
		if a.svm != nil {
			return a.svm.Wallet(label), nil
		}
	}
	for _, signer := range a.hosted {
		if w := signer.Wallet(chain, label); signer.CanSign(w) {
			return w, nil
		}
	}
	return walletsession.Wallet{}, fmt.Errorf("%w: no local signer configured for %s", walletsession.ErrNoSigner, chain)
}

func (a *app) Close() error {
	return errors.Join(a.session.Close(), a.persister.Close())
}

func collect(s *walletsession.Session) []walletsession.Wallet {
	var out []walletsession.Wallet
	for w := range s.Wallets() {
		out = append(out, w)
	}
	return out
}
