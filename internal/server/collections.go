package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/corpustack/ragd/internal/index"
	"github.com/corpustack/ragd/internal/parser"
	"github.com/corpustack/ragd/internal/vectorstore"
)

// CollectionCreateRequest is the request body for POST /api/collections.
type CollectionCreateRequest struct {
	Name string `json:"name"`
}

// CollectionInfo describes one collection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Documents int    `json:"document_count"`
	Chunks    int    `json:"chunk_count"`
}

// CollectionListResponse is the response body for GET /api/collections.
type CollectionListResponse struct {
	Collections []string `json:"collections"`
}

// DocumentListResponse is the response body for listing documents.
type DocumentListResponse struct {
	Documents []index.DocumentSummary `json:"documents"`
}

func (s *Server) handleListCollections(c echo.Context) error {
	names, err := s.store.List()
	if err != nil {
		s.logger.Error("listing collections failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list collections")
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, CollectionListResponse{Collections: names})
}

func (s *Server) handleCreateCollection(c echo.Context) error {
	var req CollectionCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := vectorstore.ValidateCollectionName(req.Name); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if s.store.Exists(req.Name) {
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("collection %q already exists", req.Name))
	}

	if _, err := s.store.CreateOrOpen(c.Request().Context(), req.Name); err != nil {
		s.logger.Error("creating collection failed", zap.String("collection", req.Name), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create collection")
	}
	return c.JSON(http.StatusCreated, CollectionInfo{Name: req.Name})
}

func (s *Server) handleGetCollection(c echo.Context) error {
	name := c.Param("name")
	if !s.store.Exists(name) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
	}

	handle, err := s.store.Open(c.Request().Context(), name)
	if err != nil {
		s.logger.Error("opening collection failed", zap.String("collection", name), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open collection")
	}

	docs, err := s.indexer.ListDocuments(name)
	if err != nil {
		s.logger.Error("listing documents failed", zap.String("collection", name), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list documents")
	}

	return c.JSON(http.StatusOK, CollectionInfo{
		Name:      name,
		Documents: len(docs),
		Chunks:    handle.Count(),
	})
}

func (s *Server) handleDeleteCollection(c echo.Context) error {
	name := c.Param("name")
	if !s.store.Exists(name) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
	}
	if err := s.store.Delete(name); err != nil {
		s.logger.Error("deleting collection failed", zap.String("collection", name), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete collection")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListDocuments(c echo.Context) error {
	name := c.Param("name")
	if !s.store.Exists(name) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
	}

	docs, err := s.indexer.ListDocuments(name)
	if err != nil {
		s.logger.Error("listing documents failed", zap.String("collection", name), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list documents")
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	if docs == nil {
		docs = []index.DocumentSummary{}
	}
	return c.JSON(http.StatusOK, DocumentListResponse{Documents: docs})
}

// handleUploadDocument spools the multipart upload to a temp directory under
// its original filename, then indexes it. The collection is created when it
// does not exist yet.
func (s *Server) handleUploadDocument(c echo.Context) error {
	name := c.Param("name")
	if err := vectorstore.ValidateCollectionName(name); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	force := false
	if raw := c.QueryParam("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid force parameter")
		}
		force = parsed
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	defer src.Close()

	// The document keeps its uploaded filename; that name is the sidecar key.
	tmpDir, err := os.MkdirTemp("", "ragd-upload-*")
	if err != nil {
		s.logger.Error("creating upload dir failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, filepath.Base(fileHeader.Filename))
	dst, err := os.Create(path)
	if err != nil {
		s.logger.Error("creating upload file failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		s.logger.Error("writing upload failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}
	if err := dst.Close(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}

	result, err := s.indexer.AddDocument(c.Request().Context(), name, path, force)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("indexing upload failed",
			zap.String("collection", name),
			zap.String("file", fileHeader.Filename),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to index document")
	}
	return c.JSON(http.StatusCreated, result)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	name := c.Param("name")
	filename := c.Param("filename")
	if !s.store.Exists(name) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
	}

	deleted, err := s.indexer.DeleteDocument(c.Request().Context(), name, filename)
	if err != nil {
		s.logger.Error("deleting document failed",
			zap.String("collection", name),
			zap.String("file", filename),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete document")
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("document %q not found", filename))
	}
	return c.NoContent(http.StatusNoContent)
}
