package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "blueprintd",
	Short: "MCP server for programmatic node-graph editing",
	Long: `blueprintd serves graph-editing tools over MCP stdio: pin connection
and disconnection, composite pin splitting, function signature editing, and
jq queries over stored documents.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, renderCmd, importCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
