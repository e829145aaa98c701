package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/0xWizop/incubator-sub002"
	httpws "github.com/0xWizop/incubator-sub002/http"
)

// registry is the part of the wallet API the wallets commands need. It is
// served by a local session or by a remote server.
type registry interface {
	Wallets(ctx context.Context, chains ...walletsession.Chain) ([]walletsession.Wallet, error)
	AddWallet(ctx context.Context, wallet walletsession.Wallet) (walletsession.Wallet, error)
	RemoveWallet(ctx context.Context, chain walletsession.Chain, address string) (walletsession.Wallet, error)
}

type localRegistry struct {
	*app
}

func (r localRegistry) Wallets(ctx context.Context, chains ...walletsession.Chain) ([]walletsession.Wallet, error) {
	var out []walletsession.Wallet
	for w := range r.session.Wallets(chains...) {
		out = append(out, w)
	}
	return out, nil
}

func (r localRegistry) AddWallet(ctx context.Context, wallet walletsession.Wallet) (walletsession.Wallet, error) {
	return r.session.AddWallet(ctx, wallet)
}

func (r localRegistry) RemoveWallet(ctx context.Context, chain walletsession.Chain, address string) (walletsession.Wallet, error) {
	return r.session.RemoveWallet(ctx, chain, address)
}

type walletsOptions struct {
	root   *rootOptions
	server string
}

// open returns the registry to operate on and a release func. local is nil
// when talking to a server.
func (o *walletsOptions) open(cmd *cobra.Command) (registry, *app, func(), error) {
	if o.server != "" {
		client, err := httpws.NewClient(o.server)
		if err != nil {
			return nil, nil, nil, err
		}
		return client, nil, func() {}, nil
	}

	cfg, err := o.root.load()
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := wireApp(cmd.Context(), cfg, cmd.ErrOrStderr(), nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return localRegistry{a}, a, func() { _ = a.Close() }, nil
}

func newWalletsCmd(root *rootOptions) *cobra.Command {
	opts := &walletsOptions{root: root}
	cmd := &cobra.Command{
		Use:   "wallets",
		Short: "Manage registered wallets",
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", "", "manage the registry of a running server instead of the local store")

	cmd.AddCommand(
		newWalletsListCmd(opts),
		newWalletsAddCmd(opts),
		newWalletsRemoveCmd(opts),
	)
	return cmd
}

func newWalletsListCmd(opts *walletsOptions) *cobra.Command {
	var chainFlags []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered wallets in registration order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			chains := make([]walletsession.Chain, 0, len(chainFlags))
			for _, raw := range chainFlags {
				chain, err := walletsession.ParseChain(raw)
				if err != nil {
					return err
				}
				chains = append(chains, chain)
			}

			reg, _, release, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer release()

			wallets, err := reg.Wallets(cmd.Context(), chains...)
			if err != nil {
				return err
			}
			for _, w := range wallets {
				printWallet(cmd.OutOrStdout(), w)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&chainFlags, "chain", nil, "only list wallets on these chains")
	return cmd
}

func newWalletsAddCmd(opts *walletsOptions) *cobra.Command {
	var (
		label  string
		signer string
	)
	cmd := &cobra.Command{
		Use:   "add <chain> [address]",
		Short: "Register a wallet",
		Long:  "add registers a wallet. Without an address, the wallet of the locally configured signer for the chain is registered.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := walletsession.ParseChain(args[0])
			if err != nil {
				return err
			}

			reg, local, release, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer release()

			wallet := walletsession.Wallet{Chain: chain, Label: label, SignerRef: walletsession.SignerRef(signer)}
			switch {
			case len(args) == 2:
				wallet.Address = args[1]
			case local != nil:
				if wallet, err = local.signerWallet(chain, label); err != nil {
					return err
				}
			default:
				return fmt.Errorf("an address is required with --server")
			}

			added, err := reg.AddWallet(cmd.Context(), wallet)
			if err != nil {
				return err
			}
			printWallet(cmd.OutOrStdout(), added)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "display label")
	cmd.Flags().StringVar(&signer, "signer", "", "signer reference that holds the key")
	return cmd
}

func newWalletsRemoveCmd(opts *walletsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <chain> <address>",
		Short: "Unregister a wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := walletsession.ParseChain(args[0])
			if err != nil {
				return err
			}

			reg, _, release, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer release()

			removed, err := reg.RemoveWallet(cmd.Context(), chain, args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", removed.Key())
			return err
		},
	}
}

func printWallet(w io.Writer, wallet walletsession.Wallet) {
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wallet.Chain, wallet.Address, wallet.Label, wallet.SignerRef)
}
