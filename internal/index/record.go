package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// sidecarFile is the per-collection bookkeeping file, colocated with the
// collection's vector data.
const sidecarFile = "index.json"

// DocumentRecord tracks one indexed filename: its content hash and the
// chunk ids it owns in the vector store. The record's chunk_ids and the
// vector store contents for that filename are updated together; neither
// side may reference chunks the other no longer has. PageCount counts the
// pages that yielded text, not the document's full page span.
type DocumentRecord struct {
	SHA256     string   `json:"sha256"`
	IndexedAt  string   `json:"indexed_at"`
	ChunkIDs   []string `json:"chunk_ids"`
	ChunkCount int      `json:"chunk_count"`
	PageCount  int      `json:"page_count"`
}

// DocumentSummary is the caller-facing view of one indexed document.
type DocumentSummary struct {
	Name       string `json:"name"`
	IndexedAt  string `json:"indexed_at"`
	ChunkCount int    `json:"chunk_count"`
	PageCount  int    `json:"page_count"`
	SHA256     string `json:"sha256"`
}

// sidecarIndex is the persisted mapping from filename to DocumentRecord.
type sidecarIndex struct {
	Documents map[string]DocumentRecord `json:"documents"`
}

// loadSidecar reads a collection's sidecar index. A missing file yields an
// empty index, not an error.
func loadSidecar(path string) (*sidecarIndex, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &sidecarIndex{Documents: map[string]DocumentRecord{}}, nil
		}
		return nil, fmt.Errorf("reading sidecar index: %w", err)
	}

	var idx sidecarIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("decoding sidecar index %s: %w", path, err)
	}
	if idx.Documents == nil {
		idx.Documents = map[string]DocumentRecord{}
	}
	return &idx, nil
}

// saveSidecar rewrites the sidecar index as a whole unit: written to a temp
// file in the same directory, then renamed over the old file.
func saveSidecar(path string, idx *sidecarIndex) error {
	raw, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sidecar index: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating collection directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, sidecarFile+".*")
	if err != nil {
		return fmt.Errorf("creating temp sidecar file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing sidecar index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing sidecar index: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing sidecar index: %w", err)
	}
	return nil
}
