package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay real-time messaging server",
	Long: `Relay is a real-time channel messaging server: presence, typing
indicators, and the message lifecycle over persistent websocket connections.

Available commands:
  serve      Start the messaging server
  topics     Inspect the registered pub/sub topics
  version    Print the version

Use "relay [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
