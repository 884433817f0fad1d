package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickchristie/motherduck-mcp/internal/meta"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gomdmcp version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "gomdmcp %s\n", meta.Version)
		return nil
	},
}
