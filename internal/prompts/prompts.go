// Package prompts holds the named prompt templates used for answer
// generation. A small built-in set ships with the binary; operators can add
// or override templates through a YAML file referenced in the config.
package prompts

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	lcprompts "github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"
)

// DefaultName is the template used when a requested name is unknown.
const DefaultName = "default"

const defaultTemplate = `You are a helpful assistant. Use the context below to answer the question.

{{if .history}}Conversation so far:
{{.history}}

{{end}}Context:
{{.context}}

Question: {{.question}}

Answer precisely and concisely. If the information is not in the context, say so clearly.`

const citedTemplate = `You are a technical documentation assistant. Answer using only the provided context.

{{if .history}}Conversation so far:
{{.history}}

{{end}}Available context:
{{.context}}

Question: {{.question}}

Guidelines:
- Cite the source document and page number for the information you use.
- If the context does not contain the answer, say: "I could not find this information in the available documentation."
- Never invent technical specifications.`

// Data carries the values substituted into a template.
type Data struct {
	Context  string
	History  string
	Question string
}

// Library is a named set of prompt templates. Safe for concurrent use.
type Library struct {
	mu        sync.RWMutex
	templates map[string]string
	logger    *zap.Logger
}

// NewLibrary returns a library seeded with the built-in templates.
func NewLibrary(logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{
		templates: map[string]string{
			DefaultName: defaultTemplate,
			"cited":     citedTemplate,
		},
		logger: logger,
	}
}

// LoadFile merges templates from a YAML file mapping names to template text.
// A missing file is not an error; the built-ins keep serving.
func (l *Library) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("prompt file not found, using built-ins", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("read prompt file: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
		return fmt.Errorf("parse prompt file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range k.Keys() {
		text := k.String(name)
		if text == "" {
			continue
		}
		l.templates[name] = text
		l.logger.Debug("loaded prompt template", zap.String("name", name))
	}
	return nil
}

// Names lists the available template names, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render formats the named template with the given data. Unknown names fall
// back to the default template rather than failing the request.
func (l *Library) Render(name string, data Data) (string, error) {
	l.mu.RLock()
	text, ok := l.templates[name]
	if !ok {
		text = l.templates[DefaultName]
	}
	l.mu.RUnlock()

	tmpl := lcprompts.NewPromptTemplate(text, []string{"context", "history", "question"})
	out, err := tmpl.Format(map[string]any{
		"context":  data.Context,
		"history":  data.History,
		"question": data.Question,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return out, nil
}
