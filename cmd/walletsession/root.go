package main

import (
	"github.com/spf13/cobra"

	"github.com/0xWizop/incubator-sub002/config"
)

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "walletsession",
		Short:         "Wallet session manager: register wallets, unlock them and serve the session",
		Long:          "walletsession keeps a registry of blockchain wallets, gates signing behind an unlock challenge and exposes the session over HTTP and MCP.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $WALLETSESSION_CONFIG or "+config.DefaultPath()+")")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(opts),
		newConnectCmd(opts),
		newStatusCmd(),
		newWalletsCmd(opts),
	)
	return rootCmd
}
