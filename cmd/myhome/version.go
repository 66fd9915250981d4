package main

import (
	"fmt"

	myhome "github.com/netkrida/myhome-sub001"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of myhome",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "myhome version %s\n", myhome.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
