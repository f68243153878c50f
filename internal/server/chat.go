package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/corpustack/ragd/internal/engine"
	"github.com/corpustack/ragd/internal/vectorstore"
)

// ChatRequest is the request body for the chat endpoints.
type ChatRequest struct {
	Message    string           `json:"message"`
	Collection string           `json:"collection_name"`
	Prompt     string           `json:"prompt_name"`
	History    []engine.Message `json:"history"`
}

// ChatResponse is the response body for POST /api/chat/sync.
type ChatResponse struct {
	Response string          `json:"response"`
	Sources  []engine.Source `json:"sources"`
}

func (r *ChatRequest) validate() error {
	if r.Message == "" {
		return errors.New("message is required")
	}
	if r.Collection == "" {
		return errors.New("collection_name is required")
	}
	return nil
}

func (s *Server) newEngine(c echo.Context, req *ChatRequest) (*engine.Engine, error) {
	return engine.New(c.Request().Context(), s.store, s.llm, s.library, engine.Options{
		Collection:    req.Collection,
		Prompt:        req.Prompt,
		TopK:          s.config.TopK,
		HistoryWindow: s.config.HistoryWindow,
	}, s.logger)
}

// handleChat streams the answer as server-sent events: one
// {"token": ...} event per fragment, {"error": ...} for a terminal failure,
// and a closing {"sources": [...], "done": true}. The stream itself always
// completes; backend failures arrive as events, not broken connections.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	eng, err := s.newEngine(c, &req)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			writeEvent(resp, map[string]any{"error": fmt.Sprintf("Collection %q not found", req.Collection)})
			return nil
		}
		s.logger.Error("engine construction failed", zap.Error(err))
		writeEvent(resp, map[string]any{"error": "internal error"})
		return nil
	}

	result, err := eng.Answer(c.Request().Context(), req.Message, engine.AnswerOptions{
		Stream:  true,
		History: req.History,
	})
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		writeEvent(resp, map[string]any{"error": "internal error"})
		return nil
	}

	for frag := range result.Stream {
		if frag.Err != nil {
			writeEvent(resp, map[string]any{"error": frag.Err.Error()})
			continue
		}
		writeEvent(resp, map[string]any{"token": frag.Token})
	}

	writeEvent(resp, map[string]any{"sources": result.Sources, "done": true})
	return nil
}

// handleChatSync returns the complete answer in one body. A recoverable
// backend failure comes back as the response text with status 200.
func (s *Server) handleChatSync(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	eng, err := s.newEngine(c, &req)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("collection %q not found", req.Collection))
		}
		s.logger.Error("engine construction failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	result, err := eng.Answer(c.Request().Context(), req.Message, engine.AnswerOptions{
		History: req.History,
	})
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	sources := result.Sources
	if sources == nil {
		sources = []engine.Source{}
	}
	return c.JSON(http.StatusOK, ChatResponse{Response: result.Text, Sources: sources})
}

// writeEvent encodes one SSE data event and flushes it immediately so
// tokens reach the client as they are generated.
func writeEvent(resp *echo.Response, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(resp, "data: %s\n\n", raw)
	resp.Flush()
}
