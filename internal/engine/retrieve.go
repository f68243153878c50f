package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/corpustack/ragd/internal/vectorstore"
)

// contextSeparator joins retrieved chunk texts inside the prompt.
const contextSeparator = "\n\n---\n\n"

// Source is a deduplicated citation for a retrieved chunk.
type Source struct {
	File  string  `json:"file"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
}

// Retrieve searches the collection for the k chunks most similar to the
// question. It returns the concatenated chunk texts, duplicates preserved,
// and the deduplicated source citations. k <= 0 uses the engine default.
func (e *Engine) Retrieve(ctx context.Context, question string, k int) (string, []Source, error) {
	ctx, span := tracer.Start(ctx, "engine.Retrieve")
	defer span.End()

	if k <= 0 {
		k = e.opts.TopK
	}
	span.SetAttributes(
		attribute.String("collection", e.opts.Collection),
		attribute.Int("k", k),
	)

	results, err := e.handle.Query(ctx, question, k)
	if err != nil {
		return "", nil, fmt.Errorf("retrieve context: %w", err)
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, contextSeparator), dedupeSources(results), nil
}

// dedupeSources collapses results sharing a (file, page) pair, keeping the
// first occurrence, which carries the best score in a ranked result list.
func dedupeSources(results []vectorstore.SearchResult) []Source {
	sources := make([]Source, 0, len(results))
	seen := map[string]bool{}
	for _, r := range results {
		file := r.Metadata["source"]
		if file == "" {
			file = "unknown"
		}
		page, _ := strconv.Atoi(r.Metadata["page"])
		key := fmt.Sprintf("%s - p.%d", file, page)
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, Source{
			File:  file,
			Page:  page,
			Score: roundScore(r.Score),
		})
	}
	return sources
}

func roundScore(s float32) float64 {
	return math.Round(float64(s)*1000) / 1000
}
