// Package server provides the HTTP API for ragd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/corpustack/ragd/internal/engine"
	"github.com/corpustack/ragd/internal/index"
	"github.com/corpustack/ragd/internal/prompts"
	"github.com/corpustack/ragd/internal/vectorstore"
)

// Config holds HTTP server configuration.
type Config struct {
	Host          string
	Port          int
	TopK          int
	HistoryWindow int
}

// Server exposes collections, documents and chat over HTTP.
type Server struct {
	echo    *echo.Echo
	store   *vectorstore.Store
	indexer *index.Indexer
	llm     engine.LLM
	library *prompts.Library
	logger  *zap.Logger
	config  *Config
}

// NewServer creates a new HTTP server.
func NewServer(store *vectorstore.Store, indexer *index.Indexer, llm engine.LLM, library *prompts.Library, logger *zap.Logger, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if llm == nil {
		return nil, fmt.Errorf("llm is required")
	}
	if library == nil {
		return nil, fmt.Errorf("prompt library is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "0.0.0.0", Port: 8000}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewHTTPMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		store:   store,
		indexer: indexer,
		llm:     llm,
		library: library,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")

	api.GET("/collections", s.handleListCollections)
	api.POST("/collections", s.handleCreateCollection)
	api.GET("/collections/:name", s.handleGetCollection)
	api.DELETE("/collections/:name", s.handleDeleteCollection)

	api.GET("/collections/:name/documents", s.handleListDocuments)
	api.POST("/collections/:name/documents", s.handleUploadDocument)
	api.DELETE("/collections/:name/documents/:filename", s.handleDeleteDocument)

	api.POST("/chat", s.handleChat)
	api.POST("/chat/sync", s.handleChatSync)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
