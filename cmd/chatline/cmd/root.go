package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatline",
	Short: "Real-time chat notification server and client",
	Long: `chatline pushes chat messages and presence changes to connected clients.

Available commands:
  serve     Run the notification server and chat API
  listen    Connect as a user and print pushed notifications
  topics    List the notification topics relayed to clients

Use "chatline [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
