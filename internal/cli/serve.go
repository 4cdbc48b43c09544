package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tutardo/chatrelay/internal/config"
	"github.com/tutardo/chatrelay/internal/logger"
	"github.com/tutardo/chatrelay/internal/server"
	"github.com/tutardo/chatrelay/internal/tracing"
	"github.com/tutardo/chatrelay/pkg/ai"
	"github.com/tutardo/chatrelay/pkg/bot"
	"github.com/tutardo/chatrelay/pkg/knowledge"
	"github.com/tutardo/chatrelay/pkg/session"
	"github.com/tutardo/chatrelay/pkg/whatsapp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat relay service",
	Long: `Run the chat relay service in the foreground: the HTTP front-ends,
the session store backend selected by configuration, and the outbound
delivery channel when enabled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	if err := tracing.InitOpenTelemetry("chatrelay", version); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.ShutdownOpenTelemetry(ctx)
	}()

	store, err := session.New(session.Config{
		Backend: cfg.Session.Backend,
		File: session.FileOptions{
			Path:         cfg.Session.FilePath,
			Timeout:      cfg.Session.Timeout,
			Debounce:     cfg.Session.Debounce,
			ReapAge:      cfg.Session.ReapAge,
			ReapInterval: cfg.Session.ReapInterval,
		},
		Redis: session.RedisOptions{
			Addr:      cfg.Session.Redis.Addr,
			Password:  cfg.Session.Redis.Password,
			DB:        cfg.Session.Redis.DB,
			KeyPrefix: cfg.Session.Redis.KeyPrefix,
			Timeout:   cfg.Session.Timeout,
		},
	}, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer store.Close()

	provider, err := ai.New(cfg.AI.Provider, cfg.AI.APIKey)
	if err != nil {
		return fmt.Errorf("failed to initialize completion provider: %w", err)
	}

	src, err := knowledge.New(cfg.Knowledge.Path, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize knowledge source: %w", err)
	}
	defer src.Close()

	handler := bot.New(store, provider, src, bot.Options{
		Model:        cfg.AI.Model,
		Temperature:  cfg.AI.Temperature,
		MaxTokens:    cfg.AI.MaxTokens,
		HistoryLimit: cfg.AI.HistoryLimit,
	}, log.Logger)

	var sender server.Sender
	if cfg.WhatsApp.Enabled {
		wa, err := whatsapp.NewClient(whatsapp.Options{
			Token:          cfg.WhatsApp.Token,
			PhoneNumberID:  cfg.WhatsApp.PhoneNumberID,
			BaseURL:        cfg.WhatsApp.APIBaseURL,
			NumberRewrites: cfg.WhatsApp.NumberRewrites,
		}, log.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize delivery client: %w", err)
		}
		sender = wa
	}

	srv, err := server.NewServer(server.Options{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		StaticDir:   cfg.Server.StaticDir,
		VerifyToken: cfg.Server.VerifyToken,
	}, handler, sender, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	return nil
}
