// Package index turns files into searchable chunks inside a collection.
//
// The indexer tracks what has already been indexed via content hashing in a
// per-collection sidecar index, making re-runs idempotent: an unchanged file
// is skipped, a changed file is re-indexed in place, and deletions remove
// both the sidecar record and its chunks from the vector store.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/corpustack/ragd/internal/parser"
	"github.com/corpustack/ragd/internal/vectorstore"
)

// chunkSeparators is the boundary preference order applied greedily from
// coarsest to finest: paragraph break, line break, sentence end, word
// boundary, raw character.
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Status tags an indexing outcome.
type Status string

const (
	// StatusIndexed means chunks were created and recorded.
	StatusIndexed Status = "indexed"

	// StatusSkipped means no side effect took place: either the file's
	// hash is unchanged, or it carries no extractable text. Not an error.
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one AddDocument call.
type Result struct {
	Status  Status `json:"status"`
	Chunks  int    `json:"chunks"`
	Message string `json:"message"`
}

// Config holds chunking configuration.
type Config struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks, preserving
	// context across chunk boundaries.
	ChunkOverlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
}

// Indexer manages document lifecycle within collections. It is the only
// writer of the sidecar index.
type Indexer struct {
	store    *vectorstore.Store
	splitter textsplitter.TextSplitter
	config   Config
	logger   *zap.Logger

	// locks serializes sidecar read-modify-write plus the paired vector
	// mutations per collection. Distinct collections do not contend.
	locks sync.Map // collection name -> *sync.Mutex
}

// New creates an Indexer over the given collection store.
func New(store *vectorstore.Store, config Config, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
		textsplitter.WithSeparators(chunkSeparators),
	)

	return &Indexer{
		store:    store,
		splitter: splitter,
		config:   config,
		logger:   logger,
	}
}

// lock returns the mutex for a collection, creating it on first use.
func (i *Indexer) lock(collection string) *sync.Mutex {
	mu, _ := i.locks.LoadOrStore(collection, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// sidecarPath returns the location of a collection's sidecar index.
func (i *Indexer) sidecarPath(collection string) string {
	return filepath.Join(i.store.Path(collection), sidecarFile)
}

// hashFile computes the SHA-256 of the file's bytes, streamed in blocks so
// hashing scales to large files.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsIndexed reports whether the file is already indexed in the collection:
// a DocumentRecord exists for its base name and the stored hash matches the
// file's current content. A same-named file with different content counts
// as not indexed.
func (i *Indexer) IsIndexed(collection, path string) (bool, error) {
	mu := i.lock(collection)
	mu.Lock()
	defer mu.Unlock()
	return i.isIndexedLocked(collection, path)
}

func (i *Indexer) isIndexedLocked(collection, path string) (bool, error) {
	idx, err := loadSidecar(i.sidecarPath(collection))
	if err != nil {
		return false, err
	}
	rec, ok := idx.Documents[filepath.Base(path)]
	if !ok {
		return false, nil
	}
	hash, err := hashFile(path)
	if err != nil {
		return false, err
	}
	return rec.SHA256 == hash, nil
}

// AddDocument indexes a file into a collection.
//
// An unchanged file (same name, same hash) is skipped unless force is set.
// A file with no extractable text is skipped; blank or scanned-without-OCR
// files are expected, not errors. An unsupported extension fails before any
// side effect. On re-index, the previous record's chunks are removed from
// the vector store best-effort before the new chunks are inserted, and the
// sidecar record is replaced atomically afterwards.
func (i *Indexer) AddDocument(ctx context.Context, collection, path string, force bool) (Result, error) {
	filename := filepath.Base(path)

	// Reject unknown formats before touching anything.
	p, err := parser.ForFile(filename)
	if err != nil {
		return Result{}, err
	}

	mu := i.lock(collection)
	mu.Lock()
	defer mu.Unlock()

	hash, err := hashFile(path)
	if err != nil {
		return Result{}, err
	}

	sidecar := i.sidecarPath(collection)
	idx, err := loadSidecar(sidecar)
	if err != nil {
		return Result{}, err
	}

	prior, hasPrior := idx.Documents[filename]
	if !force && hasPrior && prior.SHA256 == hash {
		return Result{
			Status:  StatusSkipped,
			Message: fmt.Sprintf("%s: already indexed, identical hash", filename),
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", path, err)
	}
	units, err := p.Parse(f, filename)
	f.Close()
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", filename, err)
	}

	texts, metadatas, ids, pages, err := i.chunkUnits(units, filename)
	if err != nil {
		return Result{}, err
	}
	if len(texts) == 0 {
		return Result{
			Status:  StatusSkipped,
			Message: fmt.Sprintf("%s: no extractable text", filename),
		}, nil
	}

	// Re-index case: drop the previous record's chunks first. Failure to
	// clean up stale chunks must not abort the ingestion; orphans are less
	// harmful than a failed re-index.
	if hasPrior && len(prior.ChunkIDs) > 0 {
		if handle, openErr := i.store.Open(ctx, collection); openErr == nil {
			i.bestEffortDelete(ctx, handle, prior.ChunkIDs)
		} else {
			i.logger.Warn("skipping stale chunk cleanup",
				zap.String("collection", collection),
				zap.String("document", filename),
				zap.Error(openErr),
			)
		}
	}

	handle, err := i.store.CreateOrOpen(ctx, collection)
	if err != nil {
		return Result{}, err
	}
	if err := handle.Add(ctx, texts, metadatas, ids); err != nil {
		// No sidecar record is written for a failed insertion.
		return Result{}, err
	}

	idx.Documents[filename] = DocumentRecord{
		SHA256:     hash,
		IndexedAt:  time.Now().UTC().Format(time.RFC3339),
		ChunkIDs:   ids,
		ChunkCount: len(ids),
		PageCount:  pages,
	}
	if err := saveSidecar(sidecar, idx); err != nil {
		return Result{}, err
	}

	i.logger.Info("indexed document",
		zap.String("collection", collection),
		zap.String("document", filename),
		zap.Int("chunks", len(ids)),
		zap.Int("pages", pages),
	)

	return Result{
		Status:  StatusIndexed,
		Chunks:  len(ids),
		Message: fmt.Sprintf("%s: %d chunks indexed (%d pages)", filename, len(ids), pages),
	}, nil
}

// chunkUnits splits parsed units into bounded chunks with fresh ids and
// per-chunk source/page metadata. Units with empty text are never chunked;
// pages counts the distinct pages that yielded text.
func (i *Indexer) chunkUnits(units []parser.Unit, filename string) (texts []string, metadatas []map[string]string, ids []string, pages int, err error) {
	seenPages := map[int]bool{}
	for _, unit := range units {
		if unit.Text == "" {
			continue
		}
		if !seenPages[unit.Page] {
			seenPages[unit.Page] = true
			pages++
		}

		pieces, splitErr := i.splitter.SplitText(unit.Text)
		if splitErr != nil {
			return nil, nil, nil, 0, fmt.Errorf("splitting %s page %d: %w", filename, unit.Page, splitErr)
		}
		for _, piece := range pieces {
			texts = append(texts, piece)
			metadatas = append(metadatas, map[string]string{
				"source": filename,
				"page":   strconv.Itoa(unit.Page),
			})
			ids = append(ids, uuid.NewString())
		}
	}
	return texts, metadatas, ids, pages, nil
}

// DeleteDocument removes a document's record and chunks from a collection.
// Returns false when no record exists for the filename. Vector-store
// deletion failures are logged and swallowed so the sidecar index stays
// authoritative even if the backing store is unreachable.
func (i *Indexer) DeleteDocument(ctx context.Context, collection, filename string) (bool, error) {
	mu := i.lock(collection)
	mu.Lock()
	defer mu.Unlock()

	sidecar := i.sidecarPath(collection)
	idx, err := loadSidecar(sidecar)
	if err != nil {
		return false, err
	}

	rec, ok := idx.Documents[filename]
	if !ok {
		return false, nil
	}

	if len(rec.ChunkIDs) > 0 {
		if handle, openErr := i.store.Open(ctx, collection); openErr == nil {
			i.bestEffortDelete(ctx, handle, rec.ChunkIDs)
		} else {
			i.logger.Warn("skipping chunk cleanup",
				zap.String("collection", collection),
				zap.String("document", filename),
				zap.Error(openErr),
			)
		}
	}

	delete(idx.Documents, filename)
	if err := saveSidecar(sidecar, idx); err != nil {
		return false, err
	}

	i.logger.Info("deleted document",
		zap.String("collection", collection),
		zap.String("document", filename),
	)
	return true, nil
}

// ListDocuments returns summaries for every indexed document of a
// collection. Order follows the underlying mapping and is not sorted;
// callers needing determinism must sort explicitly.
func (i *Indexer) ListDocuments(collection string) ([]DocumentSummary, error) {
	idx, err := loadSidecar(i.sidecarPath(collection))
	if err != nil {
		return nil, err
	}

	summaries := make([]DocumentSummary, 0, len(idx.Documents))
	for name, rec := range idx.Documents {
		summaries = append(summaries, DocumentSummary{
			Name:       name,
			IndexedAt:  rec.IndexedAt,
			ChunkCount: rec.ChunkCount,
			PageCount:  rec.PageCount,
			SHA256:     rec.SHA256,
		})
	}
	return summaries, nil
}

// bestEffortDelete removes chunk ids from the vector store, logging and
// discarding any failure.
func (i *Indexer) bestEffortDelete(ctx context.Context, handle *vectorstore.Handle, ids []string) {
	if err := handle.Delete(ctx, ids...); err != nil {
		i.logger.Warn("best-effort chunk deletion failed",
			zap.String("collection", handle.Name()),
			zap.Int("chunks", len(ids)),
			zap.Error(err),
		)
	}
}
