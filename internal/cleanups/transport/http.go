// Package transport provides HTTP handlers for cleanup records.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/cleanfi/internal/chains/evm"
	"github.com/pendergraft/cleanfi/internal/cleanups/domain"
)

// Service defines the cleanup service interface for HTTP transport.
type Service interface {
	Get(ctx context.Context, id string) (*domain.Cleanup, error)
	PrepareUpload(ctx context.Context, req domain.UploadRequest) (*evm.Transaction, error)
}

// Handler handles HTTP requests for cleanups.
type Handler struct {
	svc Service
}

// NewHandler creates a new cleanups HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the cleanup routes. Neither needs auth: reads
// are public and uploads only return calldata for the caller to sign.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.handleGet)
	r.Post("/", h.handleUpload)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cleanup, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanup)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req domain.UploadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	tx, err := h.svc.PrepareUpload(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCleanupID), errors.Is(err, domain.ErrInvalidProofRef):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Cleanup not found")
	case errors.Is(err, domain.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Contract not configured")
	case errors.Is(err, domain.ErrUpstream):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Chain RPC request failed")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process request")
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
