package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/0xWizop/incubator-sub002/tui"
)

func newConnectCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Pick a registered wallet and unlock it with the configured signers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			modal := tui.NewModal(tui.WithInput(cmd.InOrStdin()), tui.WithOutput(cmd.ErrOrStderr()))
			a, err := wireApp(ctx, cfg, cmd.ErrOrStderr(), modal)
			if err != nil {
				return err
			}
			defer a.Close()

			wallet, err := a.session.View().Connect(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "connected %s on %s\n", wallet.DisplayName(), wallet.Chain)
			return err
		},
	}
}
