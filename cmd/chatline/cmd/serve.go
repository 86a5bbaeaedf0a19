package cmd

import (
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nfrund/chatline/internal/app"
	"github.com/nfrund/chatline/internal/config"
	"github.com/nfrund/chatline/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notification server",
	Long: `Run the WebSocket notification server together with the chat JSON API.

Configuration is read from the environment and an optional .env file.

Examples:
  chatline serve
  chatline serve --addr :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.New()
		if serveAddr != "" {
			cfg.ServerAddr = serveAddr
		}
		logging.New(cfg.GetLogFormat(), cfg.GetLogLevel())

		deps, err := app.Build(cmd.Context(), cfg, afero.NewOsFs())
		if err != nil {
			slog.Error("Failed to start", "error", err)
			return err
		}
		return deps.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides SERVER_ADDR")
	rootCmd.AddCommand(serveCmd)
}
