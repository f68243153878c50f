package parser_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corpustack/ragd/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"pdf", "brochure.pdf", false},
		{"docx", "notes.docx", false},
		{"txt", "readme.txt", false},
		{"markdown", "guide.md", false},
		{"csv", "rows.csv", false},
		{"uppercase extension", "REPORT.PDF", false},
		{"unknown extension", "report.xyz", true},
		{"no extension", "report", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parser.ForFile(tt.filename)
			if tt.wantErr {
				require.ErrorIs(t, err, parser.ErrUnsupportedFormat)
				assert.Nil(t, p)
				// The message must enumerate what is accepted.
				assert.Contains(t, err.Error(), ".pdf")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestExtensions(t *testing.T) {
	exts := parser.Extensions()
	assert.Equal(t, []string{".csv", ".docx", ".md", ".pdf", ".txt"}, exts)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, parser.IsSupported("a.txt"))
	assert.True(t, parser.IsSupported("a.MD"))
	assert.False(t, parser.IsSupported("a.xyz"))
}

func TestTextParser(t *testing.T) {
	p := &parser.TextParser{}

	t.Run("non-empty file", func(t *testing.T) {
		units, err := p.Parse(strings.NewReader("  hello world\nsecond line  \n"), "doc.txt")
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, "hello world\nsecond line", units[0].Text)
		assert.Equal(t, "doc.txt", units[0].Source)
		assert.Equal(t, 1, units[0].Page)
	})

	t.Run("blank file yields no units", func(t *testing.T) {
		units, err := p.Parse(strings.NewReader("   \n\t\n"), "blank.txt")
		require.NoError(t, err)
		assert.Empty(t, units)
	})
}

func TestMarkdownParser(t *testing.T) {
	p := &parser.MarkdownParser{}

	src := "# Title\n\nFirst paragraph with **bold** text.\n\n- item one\n- item two\n"
	units, err := p.Parse(strings.NewReader(src), "guide.md")
	require.NoError(t, err)
	require.Len(t, units, 1)

	assert.Contains(t, units[0].Text, "Title")
	assert.Contains(t, units[0].Text, "First paragraph")
	assert.Contains(t, units[0].Text, "item one")
	assert.Equal(t, "guide.md", units[0].Source)
	assert.Equal(t, 1, units[0].Page)
}

func TestPDFParser(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "manual.pdf"))
	require.NoError(t, err)
	defer f.Close()

	p := &parser.PDFParser{}
	units, err := p.Parse(f, "manual.pdf")
	require.NoError(t, err)

	// Three pages, the middle one blank: two units, and the third page
	// keeps its original number.
	require.Len(t, units, 2)
	assert.Contains(t, units[0].Text, "Stage separation occurs at T plus 120 seconds")
	assert.Equal(t, 1, units[0].Page)
	assert.Contains(t, units[1].Text, "splashdown checklist")
	assert.Equal(t, 3, units[1].Page)
	for _, u := range units {
		assert.Equal(t, "manual.pdf", u.Source)
	}
}

func TestDOCXParser(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "manual.docx"))
	require.NoError(t, err)
	defer f.Close()

	p := &parser.DOCXParser{}
	units, err := p.Parse(f, "manual.docx")
	require.NoError(t, err)

	// Two text paragraphs and one empty paragraph collapse into a single
	// unit on page 1.
	require.Len(t, units, 1)
	assert.Equal(t, "Flight manual overview.\nTelemetry downlink uses the S band.", units[0].Text)
	assert.Equal(t, "manual.docx", units[0].Source)
	assert.Equal(t, 1, units[0].Page)
}

func TestCSVParser(t *testing.T) {
	p := &parser.CSVParser{}

	t.Run("rows rendered with headers", func(t *testing.T) {
		src := "model,payload\nSOLO,500kg\nGEMINI,1200kg\n"
		units, err := p.Parse(strings.NewReader(src), "machines.csv")
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Contains(t, units[0].Text, "Headers: model, payload")
		assert.Contains(t, units[0].Text, "model: SOLO, payload: 500kg")
		assert.Contains(t, units[0].Text, "model: GEMINI, payload: 1200kg")
	})

	t.Run("empty file yields no units", func(t *testing.T) {
		units, err := p.Parse(strings.NewReader(""), "empty.csv")
		require.NoError(t, err)
		assert.Empty(t, units)
	})
}
