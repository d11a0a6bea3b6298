package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fbarrios/folio/chat"
	"github.com/fbarrios/folio/config"
	"github.com/fbarrios/folio/logger"
	"github.com/fbarrios/folio/panel"
	"github.com/fbarrios/folio/tui"
)

var relayURLFlag string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the portfolio assistant in the terminal",
	Long: `Open the terminal chat client against a running relay.

The chat panel floats over the log view. Drag its header to move it, drag
the top or left border (or the top-left corner) to resize it.

Keys:
  enter      send            esc     stop the reply
  ctrl+r     retry           ctrl+l  clear (y/n)
  ctrl+g/b   rate the last reply up/down
  f1         suggested questions, then 1-5 to ask one
  alt+= / alt+- / alt+0   large / compact / default size
  alt+r      reset size and position
  ctrl+c     quit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&relayURLFlag, "relay-url", "", "Relay base URL (overrides client.relayUrl)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	relayURL := resolveRelayURL(cfg)

	prefs, err := cfg.PreferencesPath()
	if err != nil {
		return err
	}

	var vp panel.Viewport
	if w, h, err := term.GetSize(os.Stdout.Fd()); err == nil {
		vp = panel.Viewport{Width: w, Height: h}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	logger.Info("chat client starting", "relay", relayURL)
	err = tui.Run(ctx, tui.Options{
		Transport: newTransport(cfg, relayURL),
		Store:     panel.NewFileStore(prefs),
		Logs:      tui.NewLogSink(0),
		Viewport:  vp,
		Banner:    fmt.Sprintf("folio · %s", relayURL),
	})
	if err != nil {
		return fmt.Errorf("chat client: %w", err)
	}
	return nil
}

func resolveRelayURL(cfg *config.Config) string {
	if u := strings.TrimSpace(relayURLFlag); u != "" {
		return u
	}
	return cfg.Client.RelayURL
}

func newTransport(cfg *config.Config, relayURL string) *chat.HTTPTransport {
	return chat.NewHTTPTransport(relayURL, time.Duration(cfg.Client.RequestTimeout)*time.Second)
}
