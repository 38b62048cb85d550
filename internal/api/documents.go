package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/studyforge/studyai/internal/knowledge"
)

// DocumentStore is the part of knowledge.Store the HTTP handlers need.
type DocumentStore interface {
	Sources(ctx context.Context) ([]knowledge.SourceInfo, error)
	Count(ctx context.Context) (int64, error)
	DeleteSource(ctx context.Context, sourceFile string) (int64, error)
}

// documentHandler holds dependencies for the document API endpoints.
type documentHandler struct {
	store  DocumentStore
	logger *slog.Logger
}

// list handles GET /api/v1/documents — returns the indexed source files
// with their chunk counts.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.Sources(r.Context())
	if err != nil {
		h.logger.Error("listing documents", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list documents", h.logger)
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error("counting chunks", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to count chunks", h.logger)
		return
	}

	if infos == nil {
		infos = []knowledge.SourceInfo{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"documents":    infos,
		"total_chunks": total,
	}, h.logger)
}

// delete handles DELETE /api/v1/documents/{source} — removes every chunk
// ingested from a source file.
func (h *documentHandler) delete(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if source == "" {
		WriteError(w, http.StatusBadRequest, "missing_source", "source file name is required", h.logger)
		return
	}

	deleted, err := h.store.DeleteSource(r.Context(), source)
	if err != nil {
		h.logger.Error("deleting document", "error", err, "source_file", source)
		WriteError(w, http.StatusInternalServerError, "delete_failed", "failed to delete document", h.logger)
		return
	}
	if deleted == 0 {
		WriteError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"source_file":    source,
		"chunks_deleted": deleted,
	}, h.logger)
}
