package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/corpustack/ragd/internal/config"
	"github.com/corpustack/ragd/internal/logging"
	"github.com/corpustack/ragd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ragd HTTP server",
	Long: `Start the HTTP server exposing collections, documents and chat.

Examples:
  # Start with defaults (port 8000)
  ragd serve

  # Start with a config file
  ragd serve --config ./config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return run(ctx)
}

// run starts the server and blocks until the context is cancelled, then
// shuts down within the configured timeout.
func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting ragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Path),
		zap.String("model", cfg.Ollama.Model),
	)

	components, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(components.store, components.indexer, components.llm, components.library, logger, &server.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		TopK:          cfg.Query.TopK,
		HistoryWindow: cfg.Query.HistoryWindow,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("shutdown complete")
		return nil
	}
}
