package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser renders CSV rows as "header: cell" lines, one Unit on page 1.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) ([]Unit, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := records[0]
	var text strings.Builder
	text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n")

	for _, row := range records[1:] {
		parts := make([]string, 0, len(row))
		for j, cell := range row {
			if j < len(headers) {
				parts = append(parts, headers[j]+": "+cell)
			} else {
				parts = append(parts, cell)
			}
		}
		text.WriteString(strings.Join(parts, ", "))
		text.WriteString("\n")
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, nil
	}

	return []Unit{{Text: out, Source: filename, Page: 1}}, nil
}
