package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at release build time via -ldflags.
var version = "dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the shuttle version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "shuttle %s\n", version)
			return nil
		},
	}
}
