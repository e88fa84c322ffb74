package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/convomemory/recall/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "recall %s\n", version.Version)
		},
	}
}
