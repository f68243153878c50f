// Ragd is a document indexing and retrieval-augmented generation service.
//
// It indexes documents into named collections backed by an embedded vector
// store and answers questions about them through an Ollama model, over HTTP
// or from the command line.
//
// Usage:
//
//	# Start the HTTP server
//	ragd serve
//
//	# Index a file or a directory of files
//	ragd ingest manuals ./documents/
//
//	# Configure via file or environment
//	ragd serve --config ./config.yaml
//	SERVER_PORT=9000 OLLAMA_MODEL=mistral ragd serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Document indexing and RAG query service",
	Long: `ragd indexes documents into named collections and answers questions
about them using retrieval-augmented generation against an Ollama model.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ragd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
