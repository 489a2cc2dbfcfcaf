package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nfrund/relay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the messaging server",
	Long: `Start the messaging server: connects to SurrealDB, starts the
websocket bridge, and serves the websocket and HTTP endpoints until
interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		s := server.New()
		s.RegisterRoutes()
		s.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
