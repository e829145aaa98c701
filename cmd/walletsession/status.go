package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	httpws "github.com/0xWizop/incubator-sub002/http"
)

const defaultServer = "http://127.0.0.1:8547"

func newStatusCmd() *cobra.Command {
	var (
		server string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session served at --server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := httpws.NewClient(server)
			if err != nil {
				return err
			}
			p, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			if !p.IsConnected {
				_, err = fmt.Fprintf(out, "state: %s\nwallet: none\n", p.LockState)
				return err
			}
			_, err = fmt.Fprintf(out, "state: %s\nwallet: %s\nchain: %s\n", p.LockState, p.Address, p.Chain)
			return err
		},
	}
	cmd.Flags().StringVar(&server, "server", defaultServer, "session server URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the projection as JSON")
	return cmd
}
