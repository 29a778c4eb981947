// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/leseb/filereader/pkg/core/options"
	"github.com/leseb/filereader/pkg/core/services"
	"github.com/leseb/filereader/pkg/observability/logging"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "2.0.0"

// defaultMaxBodyBytes bounds request bodies when no limit is configured.
const defaultMaxBodyBytes = 64 << 20

// Handler implements the HTTP adapter
type Handler struct {
	converter    *services.Converter
	logger       *slog.Logger
	mux          *http.ServeMux
	maxBodyBytes int64
	now          func() time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMaxBodyBytes bounds the size of convert request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithClock sets the time source used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a new HTTP handler
func New(converter *services.Converter, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		converter:    converter,
		logger:       logging.OrDiscard(logger),
		mux:          http.NewServeMux(),
		maxBodyBytes: defaultMaxBodyBytes,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	// Register routes
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /openapi.json", h.handleOpenAPI)
	h.mux.HandleFunc("GET /v1/formats", h.handleFormats)

	// Conversion API
	h.mux.HandleFunc("POST /v1/convert", h.handleConvert)
	h.mux.HandleFunc("POST /v1/convert/upload", h.handleUpload)
	h.mux.HandleFunc("OPTIONS /v1/convert", h.handlePreflight)
	h.mux.HandleFunc("OPTIONS /v1/convert/upload", h.handlePreflight)

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	setCORS(w)

	// Log request
	h.logger.Info("Request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"request_id", requestID)

	// Serve
	h.mux.ServeHTTP(w, r)
}

// handleHealth reports service status and capabilities.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	exts := h.converter.SupportedExtensions()
	w.Header().Set("Cache-Control", "no-cache")
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "filereader",
		"version":   ServiceVersion,
		"timestamp": h.now().UTC(),
		"capabilities": map[string]any{
			"supported_formats":      exts,
			"total_formats":          len(exts),
			"output_formats":         outputFormats(),
			"ai_optimization":        true,
			"s3_support":             true,
			"multi_sheet_processing": true,
			"pdf_available":          true,
		},
	})
}

// handleFormats lists accepted extensions and output formats.
func (h *Handler) handleFormats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"extensions":     h.converter.SupportedExtensions(),
		"output_formats": outputFormats(),
	})
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func outputFormats() []string {
	out := make([]string, len(options.OutputFormats))
	for i, f := range options.OutputFormats {
		out[i] = string(f)
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}
