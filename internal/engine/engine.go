// Package engine ties retrieval and generation together: it searches a
// collection for chunks relevant to a question, renders a prompt template
// around them, and asks the language model for an answer, streamed or whole.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/corpustack/ragd/internal/ollama"
	"github.com/corpustack/ragd/internal/prompts"
	"github.com/corpustack/ragd/internal/vectorstore"
)

var tracer = otel.Tracer("ragd.engine")

const (
	defaultTopK          = 4
	defaultHistoryWindow = 6
)

// LLM generates text from a rendered prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string, fn func(token string) error) error
}

// Message is one prior conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Fragment is one element of a streamed answer. Token and Err are mutually
// exclusive; a Fragment with Err set is always the last element.
type Fragment struct {
	Token string
	Err   error
}

// Result is the outcome of Answer. Exactly one of Text and Stream is
// populated, depending on AnswerOptions.Stream. Sources is always set.
type Result struct {
	Text    string
	Stream  <-chan Fragment
	Sources []Source
}

// AnswerOptions controls a single Answer call.
type AnswerOptions struct {
	Stream  bool
	History []Message
}

// Options configures an Engine at construction.
type Options struct {
	Collection    string
	Prompt        string
	TopK          int
	HistoryWindow int
}

func (o *Options) applyDefaults() {
	if o.Prompt == "" {
		o.Prompt = prompts.DefaultName
	}
	if o.TopK <= 0 {
		o.TopK = defaultTopK
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = defaultHistoryWindow
	}
}

// Engine answers questions against one collection.
type Engine struct {
	handle  *vectorstore.Handle
	llm     LLM
	library *prompts.Library
	opts    Options
	logger  *zap.Logger
}

// New opens the collection and returns an engine bound to it. The collection
// must already exist; vectorstore.ErrCollectionNotFound is returned otherwise.
func New(ctx context.Context, store *vectorstore.Store, llm LLM, library *prompts.Library, opts Options, logger *zap.Logger) (*Engine, error) {
	if llm == nil {
		return nil, errors.New("llm is required")
	}
	if library == nil {
		return nil, errors.New("prompt library is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()

	handle, err := store.Open(ctx, opts.Collection)
	if err != nil {
		return nil, err
	}

	return &Engine{
		handle:  handle,
		llm:     llm,
		library: library,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Answer retrieves context for the question and generates a response. In
// streaming mode the returned channel carries tokens and is closed when
// generation ends; a backend failure surfaces as a single terminal Fragment
// with Err set, never as a dropped channel. In sync mode a recoverable
// backend failure becomes the response text, so callers always get sources.
func (e *Engine) Answer(ctx context.Context, question string, opts AnswerOptions) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", e.opts.Collection),
		attribute.Bool("stream", opts.Stream),
	)

	contextText, sources, err := e.Retrieve(ctx, question, e.opts.TopK)
	if err != nil {
		return nil, err
	}

	prompt, err := e.library.Render(e.opts.Prompt, prompts.Data{
		Context:  contextText,
		History:  renderHistory(opts.History, e.opts.HistoryWindow),
		Question: question,
	})
	if err != nil {
		return nil, err
	}

	if !opts.Stream {
		text, genErr := e.llm.Generate(ctx, prompt)
		if genErr != nil {
			if msg, ok := backendMessage(genErr); ok {
				e.logger.Warn("generation failed, returning message as answer", zap.Error(genErr))
				return &Result{Text: msg, Sources: sources}, nil
			}
			return nil, genErr
		}
		return &Result{Text: text, Sources: sources}, nil
	}

	ch := make(chan Fragment, 16)
	go func() {
		defer close(ch)
		streamErr := e.llm.GenerateStream(ctx, prompt, func(token string) error {
			select {
			case ch <- Fragment{Token: token}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if streamErr != nil {
			select {
			case ch <- Fragment{Err: asBackendError(streamErr)}:
			case <-ctx.Done():
			}
		}
	}()
	return &Result{Stream: ch, Sources: sources}, nil
}

// backendError keeps the original error chain behind a readable message.
type backendError struct {
	msg   string
	cause error
}

func (e *backendError) Error() string { return e.msg }
func (e *backendError) Unwrap() error { return e.cause }

// backendMessage maps the model client's recoverable failures to the
// human-readable text shown to users.
func backendMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ollama.ErrUnreachable):
		return "Cannot reach Ollama. Check that it is running (`ollama serve`).", true
	case errors.Is(err, ollama.ErrTimeout):
		return "Ollama did not respond in time. Try again.", true
	case errors.Is(err, ollama.ErrBadStatus):
		return fmt.Sprintf("Ollama error: %v", err), true
	}
	return "", false
}

func asBackendError(err error) error {
	if msg, ok := backendMessage(err); ok {
		return &backendError{msg: msg, cause: err}
	}
	return err
}

// renderHistory serializes the most recent window turns as "Role: content"
// lines. Empty history renders as the empty string.
func renderHistory(history []Message, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(m.Role), m.Content))
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
