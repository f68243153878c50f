package engine_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corpustack/ragd/internal/engine"
	"github.com/corpustack/ragd/internal/ollama"
	"github.com/corpustack/ragd/internal/prompts"
	"github.com/corpustack/ragd/internal/vectorstore"
)

// testEmbedder returns deterministic normalized vectors based on text hash.
type testEmbedder struct{}

func (e *testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.makeEmbedding(text)
	}
	return embeddings, nil
}

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

func (e *testEmbedder) makeEmbedding(text string) []float32 {
	const size = 64
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	embedding := make([]float32, size)
	var sumSq float32
	for i := range embedding {
		embedding[i] = float32((hash+i)%100)/100.0 + 0.01
		sumSq += embedding[i] * embedding[i]
	}
	norm := float32(1.0)
	if sumSq > 0 {
		norm = 1.0 / sqrt32(sumSq)
	}
	for i := range embedding {
		embedding[i] *= norm
	}
	return embedding
}

func sqrt32(x float32) float32 {
	z := x / 2
	for i := 0; i < 10; i++ {
		z = (z + x/z) / 2
	}
	return z
}

// fakeLLM scripts Generate and GenerateStream behavior.
type fakeLLM struct {
	text   string
	tokens []string
	err    error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeLLM) GenerateStream(ctx context.Context, prompt string, fn func(string) error) error {
	for _, tok := range f.tokens {
		if err := fn(tok); err != nil {
			return err
		}
	}
	return f.err
}

func newTestEngine(t *testing.T, llm engine.LLM) *engine.Engine {
	t.Helper()
	ctx := context.Background()

	store, err := vectorstore.New(
		vectorstore.Config{Path: filepath.Join(t.TempDir(), "collections")},
		&testEmbedder{},
		zap.NewNop(),
	)
	require.NoError(t, err)

	handle, err := store.CreateOrOpen(ctx, "kb")
	require.NoError(t, err)

	texts := []string{
		"GEMINI is the flagship bi-robot platform for XXL parts.",
		"SOLO is the single-robot XXL machine.",
		"HYMANCO is the containerized mobile unit.",
	}
	metas := []map[string]string{
		{"source": "gemini.pdf", "page": "2"},
		{"source": "solo.pdf", "page": "1"},
		{"source": "gemini.pdf", "page": "2"},
	}
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	require.NoError(t, handle.Add(ctx, texts, metas, ids))

	eng, err := engine.New(ctx, store, llm, prompts.NewLibrary(nil), engine.Options{Collection: "kb"}, zap.NewNop())
	require.NoError(t, err)
	return eng
}

func collect(t *testing.T, stream <-chan engine.Fragment) (string, []error) {
	t.Helper()
	var text string
	var errs []error
	for frag := range stream {
		if frag.Err != nil {
			errs = append(errs, frag.Err)
			continue
		}
		text += frag.Token
	}
	return text, errs
}

func TestNew_CollectionNotFound(t *testing.T) {
	store, err := vectorstore.New(
		vectorstore.Config{Path: filepath.Join(t.TempDir(), "collections")},
		&testEmbedder{},
		zap.NewNop(),
	)
	require.NoError(t, err)

	_, err = engine.New(context.Background(), store, &fakeLLM{}, prompts.NewLibrary(nil), engine.Options{Collection: "absent"}, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestRetrieve_DedupesSources(t *testing.T) {
	eng := newTestEngine(t, &fakeLLM{})

	contextText, sources, err := eng.Retrieve(context.Background(), "robot platform", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, contextText)
	assert.Contains(t, contextText, "---")

	// Two chunks share (gemini.pdf, page 2); citations collapse to two.
	require.Len(t, sources, 2)
	files := map[string]bool{}
	for _, s := range sources {
		files[s.File] = true
		assert.InDelta(t, math.Round(s.Score*1000)/1000, s.Score, 1e-9, "score not rounded: %v", s.Score)
	}
	assert.True(t, files["gemini.pdf"])
	assert.True(t, files["solo.pdf"])
}

func TestAnswer_Sync(t *testing.T) {
	eng := newTestEngine(t, &fakeLLM{text: "GEMINI pairs two robots."})

	res, err := eng.Answer(context.Background(), "What is GEMINI?", engine.AnswerOptions{})
	require.NoError(t, err)
	assert.Equal(t, "GEMINI pairs two robots.", res.Text)
	assert.Nil(t, res.Stream)
	assert.NotEmpty(t, res.Sources)
}

func TestAnswer_Stream(t *testing.T) {
	eng := newTestEngine(t, &fakeLLM{tokens: []string{"Hel", "lo", "!"}})

	res, err := eng.Answer(context.Background(), "greet me", engine.AnswerOptions{Stream: true})
	require.NoError(t, err)
	require.NotNil(t, res.Stream)
	assert.NotEmpty(t, res.Sources)

	text, errs := collect(t, res.Stream)
	assert.Equal(t, "Hello!", text)
	assert.Empty(t, errs)
}

func TestAnswer_StreamBackendUnreachable(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("post: %w", ollama.ErrUnreachable)}
	eng := newTestEngine(t, llm)

	res, err := eng.Answer(context.Background(), "anything", engine.AnswerOptions{Stream: true})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Sources)

	text, errs := collect(t, res.Stream)
	assert.Empty(t, text)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ollama.ErrUnreachable)
	assert.Contains(t, errs[0].Error(), "Cannot reach Ollama")
}

func TestAnswer_StreamPartialThenError(t *testing.T) {
	llm := &fakeLLM{
		tokens: []string{"partial "},
		err:    fmt.Errorf("read: %w", ollama.ErrMalformedStream),
	}
	eng := newTestEngine(t, llm)

	res, err := eng.Answer(context.Background(), "anything", engine.AnswerOptions{Stream: true})
	require.NoError(t, err)

	text, errs := collect(t, res.Stream)
	assert.Equal(t, "partial ", text)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ollama.ErrMalformedStream)
}

func TestAnswer_SyncBackendTimeout(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("post: %w", ollama.ErrTimeout)}
	eng := newTestEngine(t, llm)

	res, err := eng.Answer(context.Background(), "anything", engine.AnswerOptions{})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "did not respond in time")
	assert.NotEmpty(t, res.Sources)
}

func TestAnswer_SyncUnknownErrorPropagates(t *testing.T) {
	llm := &fakeLLM{err: errors.New("boom")}
	eng := newTestEngine(t, llm)

	_, err := eng.Answer(context.Background(), "anything", engine.AnswerOptions{})
	require.Error(t, err)
}
