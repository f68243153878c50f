package vectorstore

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SearchResult is one similarity-search hit.
type SearchResult struct {
	ID       string
	Content  string
	Metadata map[string]string
	Score    float32
}

// Handle is a per-collection view bound to the store's embedding function.
// All chunk reads and writes for a collection go through its Handle.
type Handle struct {
	name       string
	collection *chromem.Collection
	embedder   Embedder
	logger     *zap.Logger
}

// Name returns the collection name this handle is bound to.
func (h *Handle) Name() string {
	return h.name
}

// Count returns the number of chunks currently stored.
func (h *Handle) Count() int {
	return h.collection.Count()
}

// Add embeds and stores the given texts under the given ids. The three
// slices must be parallel.
func (h *Handle) Add(ctx context.Context, texts []string, metadatas []map[string]string, ids []string) error {
	ctx, span := tracer.Start(ctx, "Handle.Add")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", h.name),
		attribute.Int("chunk_count", len(texts)),
	)

	if len(texts) == 0 {
		return nil
	}
	if len(texts) != len(ids) || len(texts) != len(metadatas) {
		return fmt.Errorf("texts, metadatas and ids must have equal length")
	}

	// Embed the whole batch up front, then insert with concurrency 1.
	embeddings, err := h.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	docs := make([]chromem.Document, len(texts))
	for i := range texts {
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   texts[i],
			Metadata:  metadatas[i],
			Embedding: embeddings[i],
		}
	}

	if err := h.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		return fmt.Errorf("adding chunks to %s: %w", h.name, err)
	}

	h.logger.Debug("added chunks",
		zap.String("collection", h.name),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Delete removes the chunks with the given ids. Missing ids are not an
// error.
func (h *Handle) Delete(ctx context.Context, ids ...string) error {
	ctx, span := tracer.Start(ctx, "Handle.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", h.name),
		attribute.Int("id_count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	if err := h.collection.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting chunks from %s: %w", h.name, err)
	}

	h.logger.Debug("deleted chunks",
		zap.String("collection", h.name),
		zap.Int("count", len(ids)),
	)
	return nil
}

// Query returns up to k chunks nearest to the query text, in descending
// relevance order. k is capped at the stored chunk count; an empty
// collection yields no results.
func (h *Handle) Query(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Handle.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", h.name),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	// chromem requires nResults <= stored document count.
	count := h.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := h.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying collection %s: %w", h.name, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Similarity,
		}
	}

	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}
