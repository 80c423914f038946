package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/folio"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of folio",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "folio version %s\n", folio.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
