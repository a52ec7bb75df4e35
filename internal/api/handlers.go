package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/magplayer/magd/internal/apperr"
	"github.com/magplayer/magd/internal/magservice"
	"github.com/magplayer/magd/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc       *magservice.Service
	broker    *sse.Broker
	maxUpload int64
}

// NewHandler creates a new Handler. broker may be nil when no event
// delivery is wired (tests). maxUpload bounds the ingest request body.
func NewHandler(svc *magservice.Service, broker *sse.Broker, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 200 << 20
	}
	return &Handler{svc: svc, broker: broker, maxUpload: maxUpload}
}

func (h *Handler) publish(kind, id string) {
	if h.broker != nil {
		h.broker.PublishLibraryEvent(kind, id)
	}
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidArchive), errors.Is(err, apperr.ErrUnsupportedExtension):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(context, slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// IngestPackage handles POST /api/mags (multipart/form-data, field "file").
func (h *Handler) IngestPackage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	report, err := h.svc.IngestArchive(r.Context(), header.Filename, data, magservice.OriginServer)
	if err != nil {
		writeError(w, err, "ingest failed")
		return
	}
	h.publish(sse.KindPackageIngested, report.Package.ID)
	writeJSON(w, http.StatusCreated, report)
}

// ListPackages handles GET /api/mags.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.svc.ListPackages(r.Context())
	if err != nil {
		writeError(w, err, "list packages failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": pkgs})
}

// GetPackage handles GET /api/mags/{id}.
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetPackage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get package failed")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DeletePackage handles DELETE /api/mags/{id}.
func (h *Handler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeletePackage(r.Context(), id); err != nil {
		writeError(w, err, "delete package failed")
		return
	}
	h.publish(sse.KindPackageDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// ListMedia handles GET /api/media.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListMediaItems(r.Context())
	if err != nil {
		writeError(w, err, "list media failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"media_items": items})
}

// GetMedia handles GET /api/media/{id}.
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetMediaItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get media failed")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteMedia handles DELETE /api/media/{id}.
func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteMediaItem(r.Context(), id); err != nil {
		writeError(w, err, "delete media failed")
		return
	}
	h.publish(sse.KindMediaDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// ListDocuments handles GET /api/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context())
	if err != nil {
		writeError(w, err, "list documents failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// GetDocument handles GET /api/documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get document failed")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, err, "delete document failed")
		return
	}
	h.publish(sse.KindDocumentDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Search(r.Context(), r.URL.Query().Get("term"))
	if err != nil {
		writeError(w, err, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Relationships handles GET /api/relationships/{sourceID}.
func (h *Handler) Relationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.svc.Relationships(r.Context(), chi.URLParam(r, "sourceID"))
	if err != nil {
		writeError(w, err, "relationships failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationships": rels})
}

// History handles GET /api/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeError(w, err, "history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}
