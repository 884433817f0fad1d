// Command gomdmcp serves MotherDuck and DuckDB to AI agents over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = ".gomdmcp/config.json"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gomdmcp",
	Short:         "MotherDuck / DuckDB MCP server",
	Long:          `gomdmcp exposes a MotherDuck or DuckDB database to AI agents through the Model Context Protocol.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to configuration file (default $GOMDMCP_CONFIG_PATH or "+defaultConfigPath+")")
	rootCmd.AddCommand(serveCmd, doctorCmd, loadCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath returns the --config flag, then $GOMDMCP_CONFIG_PATH,
// then the default path.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("GOMDMCP_CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}
