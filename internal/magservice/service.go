// Package magservice coordinates ingestion, persistence, and blob storage.
package magservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magplayer/magd/internal/apperr"
	"github.com/magplayer/magd/internal/ingest"
	"github.com/magplayer/magd/internal/models"
	"github.com/magplayer/magd/internal/storage"
	"github.com/magplayer/magd/internal/store"
)

// Ingestion origins recorded in history.
const (
	OriginServer = "server"
	OriginInbox  = "inbox"
)

// PackageDetail is a package together with its extracted records.
type PackageDetail struct {
	Package    models.Package     `json:"package"`
	MediaItems []models.MediaItem `json:"media_items"`
	Documents  []models.Document  `json:"documents"`
}

// SearchResult groups search hits by kind.
type SearchResult struct {
	MediaItems []models.MediaItem `json:"media_items"`
	Documents  []models.Document  `json:"documents"`
}

// Service exposes the MAG library operations to the API, inbox, and MCP
// layers.
type Service struct {
	store    store.Store
	blobs    storage.Provider
	pipeline *ingest.Pipeline
	logger   *slog.Logger
	maxBytes int64
}

// New creates a Service. maxArchiveBytes bounds a single upload; zero means
// unbounded.
func New(st store.Store, blobs storage.Provider, pipeline *ingest.Pipeline, logger *slog.Logger, maxArchiveBytes int64) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, blobs: blobs, pipeline: pipeline, logger: logger, maxBytes: maxArchiveBytes}
}

// IngestArchive validates and ingests one .mag archive.
func (s *Service) IngestArchive(_ context.Context, fileName string, data []byte, origin string) (*ingest.Report, error) {
	if !strings.HasSuffix(strings.ToLower(fileName), ".mag") {
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnsupportedExtension, fileName)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: archive exceeds %d bytes", apperr.ErrInvalidArchive, s.maxBytes)
	}
	return s.pipeline.Ingest(fileName, data, origin)
}

// GetPackage returns a package with its media items (primary first) and
// documents.
func (s *Service) GetPackage(_ context.Context, id string) (*PackageDetail, error) {
	pkg, err := s.store.GetPackage(id)
	if err != nil {
		return nil, err
	}
	media, err := s.store.MediaByPackage(id)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.DocumentsByPackage(id)
	if err != nil {
		return nil, err
	}
	return &PackageDetail{
		Package:    *pkg,
		MediaItems: nonNilSlice(media),
		Documents:  nonNilSlice(docs),
	}, nil
}

// ListPackages returns all packages, newest first.
func (s *Service) ListPackages(_ context.Context) ([]models.Package, error) {
	pkgs, err := s.store.ListPackages()
	return nonNilSlice(pkgs), err
}

// DeletePackage removes a package and everything it owns: media blobs first,
// then all records in one transaction.
func (s *Service) DeletePackage(_ context.Context, id string) error {
	media, err := s.store.MediaByPackage(id)
	if err != nil {
		return err
	}
	for _, m := range media {
		s.deleteBlob(m.StoragePath)
	}
	return s.store.DeletePackage(id)
}

// GetMediaItem returns one media item by id.
func (s *Service) GetMediaItem(_ context.Context, id string) (*models.MediaItem, error) {
	return s.store.GetMediaItem(id)
}

// ListMediaItems returns all media items, newest first.
func (s *Service) ListMediaItems(_ context.Context) ([]models.MediaItem, error) {
	items, err := s.store.ListMediaItems()
	return nonNilSlice(items), err
}

// DeleteMediaItem removes the persisted audio bytes and the record.
func (s *Service) DeleteMediaItem(_ context.Context, id string) error {
	m, err := s.store.GetMediaItem(id)
	if err != nil {
		return err
	}
	s.deleteBlob(m.StoragePath)
	return s.store.DeleteMediaItem(id)
}

// GetDocument returns one document by id.
func (s *Service) GetDocument(_ context.Context, id string) (*models.Document, error) {
	return s.store.GetDocument(id)
}

// ListDocuments returns all documents, newest first.
func (s *Service) ListDocuments(_ context.Context) ([]models.Document, error) {
	docs, err := s.store.ListDocuments()
	return nonNilSlice(docs), err
}

// DeleteDocument removes a document record and its relationships.
func (s *Service) DeleteDocument(_ context.Context, id string) error {
	if _, err := s.store.GetDocument(id); err != nil {
		return err
	}
	return s.store.DeleteDocument(id)
}

// Relationships returns all relationships originating at sourceID.
func (s *Service) Relationships(_ context.Context, sourceID string) ([]models.Relationship, error) {
	rels, err := s.store.RelationshipsFor(sourceID)
	return nonNilSlice(rels), err
}

// Search performs a case-insensitive substring search over media file names
// and document file names, titles, and contents.
func (s *Service) Search(_ context.Context, term string) (*SearchResult, error) {
	media, docs, err := s.store.Search(strings.TrimSpace(term))
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		MediaItems: nonNilSlice(media),
		Documents:  nonNilSlice(docs),
	}, nil
}

// History returns the most recent ingestion history entries.
func (s *Service) History(_ context.Context, limit int) ([]models.HistoryEntry, error) {
	entries, err := s.store.ListHistory(limit)
	return nonNilSlice(entries), err
}

// deleteBlob removes persisted bytes, logging rather than failing when the
// blob is already gone: record deletion must still proceed.
func (s *Service) deleteBlob(path string) {
	if path == "" {
		return
	}
	if err := s.blobs.Delete(path); err != nil {
		s.logger.Warn("blob delete failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
