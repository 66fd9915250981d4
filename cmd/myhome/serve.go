package main

import (
	"context"

	myhome "github.com/netkrida/myhome-sub001"
	"github.com/netkrida/myhome-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wizard HTTP server",
	Long:  `Starts the wizard engine as a JSON API over HTTP, with Server-Sent Events for state changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer app.Close()

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.Serve(sigCtx, app, app.Config.Server.Addr, myhome.Version, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on (overrides server.addr)")
}
