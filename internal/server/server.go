// Package server exposes the HTTP front-ends: the messaging webhook, the
// browser simulator endpoint and the operational endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutardo/chatrelay/internal/observability"
	"github.com/tutardo/chatrelay/pkg/bot"
)

// Sender delivers a reply to a user on the outbound messaging channel.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// Options configures the HTTP server.
type Options struct {
	Host        string
	Port        int
	StaticDir   string
	VerifyToken string
}

// Server is the HTTP front-end server.
type Server struct {
	options        Options
	server         *http.Server
	handler        *bot.Handler
	sender         Sender
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates the HTTP server. sender may be nil when the outbound
// channel is disabled (browser-only deployments).
func NewServer(options Options, handler *bot.Handler, sender Sender, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if handler == nil {
		return nil, fmt.Errorf("bot handler is required")
	}

	return &Server{
		options:   options,
		handler:   handler,
		sender:    sender,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/chat-local", s.handleChatLocal)

	if s.options.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.options.StaticDir)))
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: mux,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server, waiting for in-flight requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}
