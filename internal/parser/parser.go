// Package parser extracts text from uploaded documents.
//
// Each supported format is handled by a dedicated Parser behind a static
// registry keyed by file extension. Parsers produce an ordered sequence of
// Units; downstream chunking and embedding never touch format internals.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned when no parser is registered for a file's
// extension. It is reported before any indexing side effect.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Unit is one extracted piece of a document: the text of a page (or of the
// whole file for formats without page structure), the originating filename,
// and a 1-based page number.
type Unit struct {
	Text   string
	Source string
	Page   int
}

// Parser converts raw document bytes into an ordered sequence of Units.
//
// Implementations must only return units with non-empty text; a document
// with no extractable text yields an empty slice and a nil error.
type Parser interface {
	Parse(r io.Reader, filename string) ([]Unit, error)
}

// registry is the closed set of supported formats. Unknown extensions are
// rejected at the boundary.
var registry = map[string]Parser{
	".pdf":  &PDFParser{},
	".docx": &DOCXParser{},
	".txt":  &TextParser{},
	".md":   &MarkdownParser{},
	".csv":  &CSVParser{},
}

// ForFile returns the parser registered for the file's extension.
// The error message enumerates the accepted extensions.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	p, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (accepted: %s)",
			ErrUnsupportedFormat, ext, strings.Join(Extensions(), ", "))
	}
	return p, nil
}

// IsSupported reports whether the file's extension has a registered parser.
func IsSupported(filename string) bool {
	_, ok := registry[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extensions returns the accepted file extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
