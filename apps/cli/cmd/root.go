package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hitman",
	Short: "Scriptable HTTP requests from plain text templates",
	Long: `hitman sends HTTP and GraphQL requests stored as plain text files,
filling {{placeholders}} from layered TOML configuration and capturing
values from responses to feed the next request.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(targetCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
