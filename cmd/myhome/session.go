package main

import (
	"github.com/netkrida/myhome-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage wizards in progress",
	Long:  `List, inspect and remove the saved progress of wizards in session storage.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List wizards in progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.ListSessions(cmd.Context(), app, cmd.OutOrStdout())
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id> <flow>",
	Short: "Show the saved progress of one wizard",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts cli.InspectOptions
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Graph, _ = cmd.Flags().GetBool("graph")
		app, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.InspectSession(cmd.Context(), app, args[0], args[1], opts, cmd.OutOrStdout())
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Discard the saved progress of one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.RemoveSessions(cmd.Context(), app, args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().Bool("json", false, "Print the raw state as JSON")
	sessionInspectCmd.Flags().Bool("graph", false, "Append a Mermaid flowchart of the wizard")
}
