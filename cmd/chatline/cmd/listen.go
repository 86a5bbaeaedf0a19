package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/chatline/internal/client"
	"github.com/nfrund/chatline/internal/config"
	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/logging"
	"github.com/nfrund/chatline/internal/registry"
)

var (
	listenUser string
	listenURL  string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect as a user and print pushed notifications",
	Long: `Connect to a chatline server as the given user and print every
notification it pushes. The connection is re-established after transport
failures until the command is interrupted.

Examples:
  chatline listen --user alice
  chatline listen --user alice --url ws://chat.example.com/ws`,
	RunE: runListen,
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	if listenURL != "" {
		cfg.ClientWSURL = listenURL
	}
	logging.New(cfg.GetLogFormat(), cfg.GetLogLevel())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := registry.New()
	manager := client.NewManager(cfg, sessions)
	manager.Subscribe(&printListener{out: cmd.OutOrStdout()})
	manager.Start(ctx)

	if err := manager.Connect(ctx, domain.UserIdentity{DisplayName: listenUser}); err != nil {
		return err
	}

	<-ctx.Done()
	if err := manager.Shutdown(context.Background()); err != nil {
		slog.Warn("Receiver shutdown incomplete", "error", err)
		return err
	}
	return nil
}

// printListener writes each notification as one line.
type printListener struct {
	out io.Writer
}

func (p *printListener) NewMessage(msg domain.ChatMessage) {
	fmt.Fprintf(p.out, "%s  [%d] %s\n", msg.Timestamp.Format("15:04:05"), msg.OwnerID, msg.Content)
}

func (p *printListener) UserUpdate(update client.UserUpdate) {
	if update.FullUpdate {
		fmt.Fprintf(p.out, "user %d: profile changed\n", update.UserID)
		return
	}
	fmt.Fprintf(p.out, "user %d: %s\n", update.UserID, update.State)
}

func init() {
	listenCmd.Flags().StringVarP(&listenUser, "user", "u", "", "display name to connect as")
	listenCmd.Flags().StringVar(&listenURL, "url", "", "server WebSocket URL, overrides CLIENT_WS_URL")
	_ = listenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(listenCmd)
}
