package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fbarrios/folio/chat"
)

var askMessage string

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask the assistant one question and print the reply",
	Long: `Send a single question to the relay and stream the reply to stdout.

Examples:
  folio ask -m "Who is Francisco Barrios?"
  folio ask --relay-url https://fbarrios.dev -m "Is Francisco available for hire?"`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMessage, "message", "m", "", "Question to ask (required)")
	askCmd.Flags().StringVar(&relayURLFlag, "relay-url", "", "Relay base URL (overrides client.relayUrl)")
	_ = askCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var (
		mu      sync.Mutex
		printed int
	)
	session := chat.NewSession(newTransport(cfg, resolveRelayURL(cfg)), chat.WithUpdateHook(func(s chat.Snapshot) {
		last, ok := s.LastAssistant()
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if text := last.Text(); len(text) > printed {
			fmt.Fprint(out, text[printed:])
			printed = len(text)
		}
	}))
	defer session.Close()

	if err := session.Submit(askMessage); err != nil {
		return err
	}
	stopCancel := context.AfterFunc(ctx, session.Close)
	defer stopCancel()

	session.Wait()
	fmt.Fprintln(out)

	snap := session.Snapshot()
	if snap.Status == chat.StatusError && snap.Err != nil {
		return fmt.Errorf("%s: %s", snap.Err.Title, snap.Err.Message)
	}
	return nil
}
