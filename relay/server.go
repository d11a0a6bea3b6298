// Package relay implements the chat relay HTTP service: POST /api/chat
// streams an upstream completion back as an AI SDK UI message stream, next to
// GET /api/health and GET /api/projects.
package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fbarrios/folio/chaterr"
	"github.com/fbarrios/folio/internal/health"
	"github.com/fbarrios/folio/logger"
	"github.com/fbarrios/folio/provider"
)

var rlog = logger.With("component", "relay")

const (
	DefaultMaxBodyBytes   = 1 << 20
	DefaultMaxInputTokens = 24000
	DefaultRatePerMinute  = 20
	DefaultRateBurst      = 5
)

// Options configures a Server.
type Options struct {
	// Upstream is nil when the provider credential is missing; every chat
	// request then answers 500 with a configuration error.
	Upstream      provider.Provider
	CredentialEnv string
	SystemPrompt  string
	// SystemPromptFile is reported by the health endpoint when set.
	SystemPromptFile string

	// Projects serves GET /api/projects; nil answers 404.
	Projects         http.Handler
	NotionConfigured bool

	CORS           *CORSConfig
	RatePerMinute  int
	RateBurst      int
	MaxBodyBytes   int64
	MaxInputTokens int
}

func (o *Options) applyDefaults() {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt()
	}
	if o.CORS == nil {
		o.CORS = DefaultCORSConfig()
	}
	if o.RatePerMinute <= 0 {
		o.RatePerMinute = DefaultRatePerMinute
	}
	if o.RateBurst <= 0 {
		o.RateBurst = DefaultRateBurst
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.MaxInputTokens <= 0 {
		o.MaxInputTokens = DefaultMaxInputTokens
	}
}

// Server is the relay HTTP server.
type Server struct {
	opts      Options
	router    chi.Router
	limiter   *RateLimiter
	startedAt time.Time
	server    *http.Server
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	opts.applyDefaults()
	s := &Server{
		opts:      opts,
		limiter:   NewRateLimiter(opts.RatePerMinute, opts.RateBurst),
		startedAt: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware, LoggingMiddleware, CORSMiddleware(s.opts.CORS))
	r.MethodNotAllowed(handleMethodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", r.URL.Path)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(RateLimitMiddleware(s.limiter)).Post("/chat", s.handleChat)
		r.Get("/health", s.handleHealth)
		if s.opts.Projects != nil {
			r.Method(http.MethodGet, "/projects", s.opts.Projects)
		}
	})
	s.router = r
}

// Handler exposes the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ce := chaterr.New(chaterr.KindMethodNotAllowed, r.Method+" is not supported on "+r.URL.Path)
	writeFailure(w, ce)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	opts := health.Options{
		GatewayReady:     s.opts.Upstream != nil,
		NotionReady:      s.opts.NotionConfigured,
		StartedAt:        s.startedAt,
		SystemPromptFile: s.opts.SystemPromptFile,
	}
	if s.opts.Upstream != nil {
		opts.Provider = s.opts.Upstream.Name()
		opts.Model = s.opts.Upstream.Model()
	}
	writeJSON(w, http.StatusOK, health.Collect(opts))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rlog.Info("chat relay listening", "addr", addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rlog.Info("chat relay shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
