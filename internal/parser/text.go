package parser

import (
	"fmt"
	"io"
	"strings"
)

// TextParser handles plain-text files as a single Unit on page 1.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]Unit, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}

	return []Unit{{Text: text, Source: filename, Page: 1}}, nil
}
