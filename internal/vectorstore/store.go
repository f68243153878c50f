// Package vectorstore owns the set of named, persistent vector collections.
//
// Each collection is an independent chromem-go database stored under its own
// subdirectory of the storage root. A collection "exists" only when its
// directory is non-empty; a provisioned-but-never-populated directory does
// not count as usable.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("ragd.vectorstore")

// chunkCollection is the name of the single chromem collection inside each
// collection database.
const chunkCollection = "chunks"

// Sentinel errors for store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config holds configuration for the collection store.
type Config struct {
	// Path is the storage root; each collection lives in Path/<name>/.
	Path string

	// Compress enables gzip compression for persisted vectors.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "./collections"
	}
}

// Store manages named vector collections under a storage root.
//
// The store itself carries no business logic beyond collection lifecycle;
// chunk content is read and written through per-collection Handles.
type Store struct {
	config   Config
	embedder Embedder
	logger   *zap.Logger
}

// New creates a Store rooted at config.Path, creating the root if needed.
func New(config Config, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root %s: %w", config.Path, err)
	}

	logger.Info("collection store initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
	)

	return &Store{
		config:   config,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Path returns the directory a collection lives in.
func (s *Store) Path(name string) string {
	return filepath.Join(s.config.Path, name)
}

// Exists reports whether a collection exists: its directory is present and
// non-empty.
func (s *Store) Exists(name string) bool {
	if err := ValidateCollectionName(name); err != nil {
		return false
	}
	entries, err := os.ReadDir(s.Path(name))
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// CreateOrOpen ensures the collection's directory exists and returns a
// Handle bound to the store's embedder. Idempotent.
func (s *Store) CreateOrOpen(ctx context.Context, name string) (*Handle, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateOrOpen")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	dir := s.Path(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating collection directory %s: %w", dir, err)
	}

	db, err := chromem.NewPersistentDB(dir, s.config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", name, err)
	}

	collection, err := db.GetOrCreateCollection(chunkCollection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("opening chunk collection for %s: %w", name, err)
	}

	s.logger.Debug("opened collection",
		zap.String("collection", name),
		zap.Int("chunks", collection.Count()),
	)

	return &Handle{
		name:       name,
		collection: collection,
		embedder:   s.embedder,
		logger:     s.logger,
	}, nil
}

// Open returns a Handle for an existing collection, or ErrCollectionNotFound
// when Exists(name) is false.
func (s *Store) Open(ctx context.Context, name string) (*Handle, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if !s.Exists(name) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return s.CreateOrOpen(ctx, name)
}

// List returns the names of all non-empty collection directories,
// alphabetically ordered.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.config.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading storage root: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if s.Exists(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete recursively removes the collection's storage subtree. No-op when
// the collection is absent. Irreversible; not serialized against concurrent
// readers of the same collection.
func (s *Store) Delete(name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Path(name)); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	s.logger.Info("deleted collection", zap.String("collection", name))
	return nil
}

// embeddingFunc adapts the store's Embedder to chromem's callback contract.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}
