package main

import (
	"github.com/netkrida/myhome-sub001/internal/cli"
	"github.com/netkrida/myhome-sub001/pkg/flows"
	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the wizard flows and their steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		withGraph, _ := cmd.Flags().GetBool("graph")
		return cli.ListFlows(flows.Default(), withGraph, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
	flowsCmd.Flags().Bool("graph", false, "Include a Mermaid flowchart per flow")
}
