package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/corpustack/ragd/internal/config"
	"github.com/corpustack/ragd/internal/index"
	"github.com/corpustack/ragd/internal/logging"
	"github.com/corpustack/ragd/internal/parser"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <collection> <path>",
	Short: "Index a file or directory into a collection",
	Long: `Index a document, or every supported document in a directory, into a
collection. Files already indexed with identical content are skipped.

Examples:
  # Index a whole directory
  ragd ingest manuals ./documents/

  # Re-index one file even if unchanged
  ragd ingest manuals ./documents/SOLO.pdf --force`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-index even if already present")
}

func runIngest(cmd *cobra.Command, args []string) error {
	collection, path := args[0], args[1]
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New("error", cfg.Logging.Format)
	if err != nil {
		return err
	}
	components, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Indexing into collection: %s\n\n", collection)

	if err := components.llm.Ping(ctx); err != nil {
		fmt.Printf("Error: Ollama is not reachable at %s\n", cfg.Ollama.BaseURL)
		fmt.Println("Start it with: ollama serve")
		os.Exit(1)
	}
	fmt.Println("Ollama is reachable.")

	files, err := collectFiles(path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No supported files found in %s\n", path)
		fmt.Printf("Accepted formats: %s\n", strings.Join(parser.Extensions(), ", "))
		os.Exit(1)
	}
	fmt.Printf("%d file(s) found\n\n", len(files))

	start := time.Now()
	indexed, skipped, totalChunks := 0, 0, 0

	for i, file := range files {
		fmt.Printf("  [%d/%d] %s... ", i+1, len(files), filepath.Base(file))
		result, err := components.indexer.AddDocument(ctx, collection, file, ingestForce)
		if err != nil {
			fmt.Printf("-> error: %v\n", err)
			continue
		}
		fmt.Printf("-> %s\n", result.Message)

		if result.Status == index.StatusIndexed {
			indexed++
			totalChunks += result.Chunks
		} else {
			skipped++
		}
	}

	fmt.Println()
	fmt.Printf("%d document(s) indexed, %d skipped\n", indexed, skipped)
	fmt.Printf("%d chunks created in total\n", totalChunks)
	fmt.Printf("Duration: %.1f seconds\n", time.Since(start).Seconds())
	fmt.Printf("Collection: %s\n", collection)
	return nil
}

// collectFiles resolves the argument to the list of files to index: the file
// itself, or every supported file directly inside the directory, sorted.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", path, err)
	}

	if !info.IsDir() {
		if !parser.IsSupported(path) {
			return nil, fmt.Errorf("unsupported format %s (accepted: %s)",
				filepath.Ext(path), strings.Join(parser.Extensions(), ", "))
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", path, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(path, entry.Name())
		if parser.IsSupported(full) {
			files = append(files, full)
		}
	}
	sort.Strings(files)
	return files, nil
}
