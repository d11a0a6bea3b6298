package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fbarrios/folio/config"
	"github.com/fbarrios/folio/logger"
	"github.com/fbarrios/folio/projects"
	"github.com/fbarrios/folio/provider"
	"github.com/fbarrios/folio/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat relay",
	Long: `Start the chat relay HTTP service.

Routes:
  POST /api/chat      stream a reply as an AI SDK UI message stream
  GET  /api/health    configuration and runtime snapshot
  GET  /api/projects  project directory from Notion

The relay refuses to start without an upstream API key unless
--allow-missing-key is set; chat requests then answer 500.

Examples:
  folio serve
  folio serve --addr 0.0.0.0:8080
  AI_GATEWAY_API_KEY=... folio serve`,
	RunE: runServe,
}

var (
	serveAddr            string
	serveAllowMissingKey bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides relay.addr)")
	serveCmd.Flags().BoolVar(&serveAllowMissingKey, "allow-missing-key", false, "Start even when the upstream API key is missing")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr := strings.TrimSpace(serveAddr); addr != "" {
		cfg.Relay.Addr = addr
	}

	upstream, err := buildUpstream(cfg)
	if err != nil {
		if !errors.Is(err, provider.ErrMissingCredential) {
			return err
		}
		if !serveAllowMissingKey {
			printMissingKeyHelp(cmd, cfg.Gateway.Provider)
			return err
		}
		logger.Warn("upstream credential missing, chat requests will fail", "provider", cfg.Gateway.Provider)
	}

	promptPath, err := cfg.SystemPromptPath()
	if err != nil {
		return err
	}
	prompt, err := relay.LoadSystemPrompt(promptPath)
	if err != nil {
		return err
	}

	notion := projects.NewNotion(cfg.Notion.Token, cfg.Notion.DatabaseID, cfg.Notion.APIBase)
	if !notion.Configured() {
		logger.Warn("Notion not configured, /api/projects will answer 500")
	}

	srv := relay.New(relay.Options{
		Upstream:         upstream,
		CredentialEnv:    provider.CredentialEnv(cfg.Gateway.Provider),
		SystemPrompt:     prompt,
		SystemPromptFile: promptPath,
		Projects:         projects.Handler(notion),
		NotionConfigured: notion.Configured(),
		CORS: &relay.CORSConfig{
			AllowedOrigins: cfg.Relay.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		RatePerMinute:  cfg.Relay.RateLimitPerMinute,
		RateBurst:      cfg.Relay.RateLimitBurst,
		MaxBodyBytes:   cfg.Relay.MaxBodyBytes,
		MaxInputTokens: cfg.Relay.MaxInputTokens,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Relay.Addr, time.Duration(cfg.Relay.ShutdownTimeout)*time.Second)
	})
	if notion.Configured() {
		g.Go(func() error {
			warmProjects(gctx, notion)
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "folio relay listening on %s. Press Ctrl+C to stop.\n", cfg.Relay.Addr)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("relay stopped: %w", err)
	}
	logger.Info("chat relay stopped")
	return nil
}

func buildUpstream(cfg *config.Config) (provider.Provider, error) {
	return provider.Build(provider.Settings{
		Provider:    cfg.Gateway.Provider,
		Model:       cfg.Gateway.Model,
		APIKey:      cfg.Gateway.APIKey,
		APIBase:     cfg.Gateway.APIBase,
		MaxTokens:   cfg.Gateway.MaxTokens,
		Temperature: cfg.Gateway.Temperature,
	})
}

func printMissingKeyHelp(cmd *cobra.Command, providerName string) {
	out := cmd.ErrOrStderr()
	env := provider.CredentialEnv(providerName)
	fmt.Fprintf(out, "No API key configured for provider %q.\n\n", providerName)
	fmt.Fprintln(out, "Set one of:")
	if env != "" {
		fmt.Fprintf(out, "  export %s=...\n", env)
	}
	fmt.Fprintln(out, "  gateway.apiKey in config.yaml (see 'folio onboard')")
	if reg, ok := provider.Registration(providerName); ok && reg.KeyURL != "" {
		fmt.Fprintf(out, "\nCreate a key at %s\n", reg.KeyURL)
	}
	fmt.Fprintln(out, "\nOr start anyway with --allow-missing-key.")
}

// warmProjects checks the Notion connection once at startup so a broken
// token shows up in the logs before the first visitor does.
func warmProjects(ctx context.Context, src *projects.Notion) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	list, err := src.Projects(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("project directory check failed", "err", err)
		}
		return
	}
	logger.Info("project directory reachable", "projects", len(list))
}
