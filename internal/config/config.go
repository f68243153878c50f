// Package config provides configuration loading for ragd.
//
// Configuration is read from a YAML file, then overridden by environment
// variables, with hardcoded defaults filling the gaps.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete ragd configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Ollama  OllamaConfig  `koanf:"ollama"`
	Index   IndexConfig   `koanf:"index"`
	Query   QueryConfig   `koanf:"query"`
	Prompts PromptsConfig `koanf:"prompts"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StorageConfig holds the collection storage configuration.
type StorageConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// OllamaConfig holds the model backend configuration. The same server
// answers both embedding and generation requests.
type OllamaConfig struct {
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	EmbedModel  string        `koanf:"embed_model"`
	Timeout     time.Duration `koanf:"timeout"`
	Temperature float64       `koanf:"temperature"`
	NumCtx      int           `koanf:"num_ctx"`
}

// IndexConfig holds document chunking parameters.
type IndexConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// QueryConfig holds retrieval parameters.
type QueryConfig struct {
	TopK          int `koanf:"top_k"`
	HistoryWindow int `koanf:"history_window"`
}

// PromptsConfig points at an optional YAML file of extra prompt templates.
type PromptsConfig struct {
	File string `koanf:"file"`
}

// LoggingConfig holds logger construction parameters.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./collections"
	}

	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = "llama3.1:8b"
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = "nomic-embed-text"
	}
	if cfg.Ollama.Timeout == 0 {
		cfg.Ollama.Timeout = 120 * time.Second
	}
	if cfg.Ollama.Temperature == 0 {
		cfg.Ollama.Temperature = 0.3
	}
	if cfg.Ollama.NumCtx == 0 {
		cfg.Ollama.NumCtx = 4096
	}

	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 1000
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 200
	}

	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 4
	}
	if cfg.Query.HistoryWindow == 0 {
		cfg.Query.HistoryWindow = 6
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Storage.Path == "" {
		return errors.New("storage path is required")
	}

	if c.Ollama.BaseURL == "" {
		return errors.New("ollama base_url is required")
	}
	if c.Ollama.Timeout <= 0 {
		return errors.New("ollama timeout must be positive")
	}

	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk_size: %d (must be positive)", c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("invalid chunk_overlap: %d (must be in [0, chunk_size))", c.Index.ChunkOverlap)
	}

	if c.Query.TopK <= 0 {
		return fmt.Errorf("invalid top_k: %d (must be positive)", c.Query.TopK)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	return nil
}
