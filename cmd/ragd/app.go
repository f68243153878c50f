package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/corpustack/ragd/internal/config"
	"github.com/corpustack/ragd/internal/embeddings"
	"github.com/corpustack/ragd/internal/index"
	"github.com/corpustack/ragd/internal/ollama"
	"github.com/corpustack/ragd/internal/prompts"
	"github.com/corpustack/ragd/internal/vectorstore"
)

// app holds the wired components shared by the serve and ingest commands.
type app struct {
	store   *vectorstore.Store
	indexer *index.Indexer
	llm     *ollama.Client
	library *prompts.Library
}

func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.EmbedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	store, err := vectorstore.New(vectorstore.Config{
		Path:     cfg.Storage.Path,
		Compress: cfg.Storage.Compress,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	indexer := index.New(store, index.Config{
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
	}, logger)

	llm := ollama.NewClient(ollama.Config{
		BaseURL:     cfg.Ollama.BaseURL,
		Model:       cfg.Ollama.Model,
		Timeout:     cfg.Ollama.Timeout,
		Temperature: cfg.Ollama.Temperature,
		NumCtx:      cfg.Ollama.NumCtx,
	}, logger)

	library := prompts.NewLibrary(logger)
	if cfg.Prompts.File != "" {
		if err := library.LoadFile(cfg.Prompts.File); err != nil {
			return nil, fmt.Errorf("failed to load prompt templates: %w", err)
		}
	}

	return &app{
		store:   store,
		indexer: indexer,
		llm:     llm,
		library: library,
	}, nil
}
