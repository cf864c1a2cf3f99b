package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sidrapanel/pkg/contracts"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
