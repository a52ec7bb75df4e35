package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/magplayer/magd/internal/magservice"
	"github.com/magplayer/magd/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, receives library events and serves GET /events.
func NewRouter(svc *magservice.Service, authEnabled bool, token string, broker *sse.Broker, maxUpload int64) chi.Router {
	h := NewHandler(svc, broker, maxUpload)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Package ingestion and lifecycle.
	r.Post("/mags", h.IngestPackage)
	r.Get("/mags", h.ListPackages)
	r.Get("/mags/{id}", h.GetPackage)
	r.Delete("/mags/{id}", h.DeletePackage)

	// Extracted records.
	r.Get("/media", h.ListMedia)
	r.Get("/media/{id}", h.GetMedia)
	r.Delete("/media/{id}", h.DeleteMedia)
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{id}", h.GetDocument)
	r.Delete("/documents/{id}", h.DeleteDocument)

	// Search, relationships, history.
	r.Get("/search", h.Search)
	r.Get("/relationships/{sourceID}", h.Relationships)
	r.Get("/history", h.History)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}

// NewStorageRouter serves extracted audio bytes (unauthenticated, like the
// original's static /storage mount).
func NewStorageRouter(storageRoot string) chi.Router {
	mh := NewMediaFileHandler(storageRoot)
	r := chi.NewRouter()
	r.Get("/audio/{filename}", mh.ServeFile)
	return r
}
