package store

import "github.com/magplayer/magd/internal/models"

// Store defines the persistence contract consumed by the service layer.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with alternative backends.
type Store interface {
	SaveIngest(rec IngestRecord) error

	GetPackage(id string) (*models.Package, error)
	ListPackages() ([]models.Package, error)
	DeletePackage(id string) error

	GetMediaItem(id string) (*models.MediaItem, error)
	ListMediaItems() ([]models.MediaItem, error)
	MediaByPackage(packageID string) ([]models.MediaItem, error)
	DeleteMediaItem(id string) error

	GetDocument(id string) (*models.Document, error)
	ListDocuments() ([]models.Document, error)
	DocumentsByPackage(packageID string) ([]models.Document, error)
	DeleteDocument(id string) error

	RelationshipsFor(sourceID string) ([]models.Relationship, error)
	Search(term string) ([]models.MediaItem, []models.Document, error)
	ListHistory(limit int) ([]models.HistoryEntry, error)

	Close() error
}

// IngestRecord is everything one ingestion run persists. SaveIngest writes
// it in a single transaction so a failed ingest leaves no partial rows.
type IngestRecord struct {
	Package       models.Package
	MediaItems    []models.MediaItem
	Documents     []models.Document
	Relationships []models.Relationship
	History       models.HistoryEntry
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
