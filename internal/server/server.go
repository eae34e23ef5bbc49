// Package server exposes the analysis entry points over HTTP for
// presentation consumers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/trishield/internal/history"
	"github.com/ppiankov/trishield/internal/model"
	"github.com/ppiankov/trishield/internal/pipeline"
)

const (
	maxBodyBytes   = 1 << 20
	maxBatchURLs   = 1000
	requestTimeout = 60 * time.Second
)

// Analyzer is the subset of the pipeline the API serves
type Analyzer interface {
	AnalyzeURL(ctx context.Context, url string) (model.Verdict, error)
	AnalyzeLinks(ctx context.Context, urls []string) ([]model.Verdict, error)
	Settings() model.Settings
	Store() history.Store
}

// Server holds the HTTP handlers
type Server struct {
	analyzer Analyzer
	version  string
	logger   *slog.Logger
}

// New creates a server
func New(analyzer Analyzer, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{analyzer: analyzer, version: version, logger: logger}
}

// Routes returns the router
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.analyze)
		r.Post("/analyze/batch", s.analyzeBatch)
		r.Get("/history", s.history)
		r.Get("/settings", s.settings)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	Verdict  model.Verdict `json:"verdict"`
	Block    bool          `json:"block"`
	Announce bool          `json:"announce"`
}

type batchRequest struct {
	URLs []string `json:"urls"`
}

type batchResponse struct {
	Results []model.Verdict `json:"results"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": s.version})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}

	v, err := s.analyzer.AnalyzeURL(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	settings := s.analyzer.Settings()
	writeJSON(w, http.StatusOK, analyzeResponse{
		Verdict:  v,
		Block:    model.ShouldBlock(v, settings),
		Announce: model.ShouldAnnounce(v, settings),
	})
}

func (s *Server) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.URLs) > maxBatchURLs {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "too many urls", "max": maxBatchURLs})
		return
	}

	results, err := s.analyzer.AnalyzeLinks(r.Context(), req.URLs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries := []model.HistoryEntry{}
	if store := s.analyzer.Store(); store != nil {
		list, err := store.List(limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		entries = list
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	settings := s.analyzer.Settings()
	writeJSON(w, http.StatusOK, map[string]any{
		"settings":     settings,
		"vtConfigured": settings.HasAPIKey(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var pe *pipeline.ParseError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": pe.Error()})
	case errors.Is(err, pipeline.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
