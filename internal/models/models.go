// Package models defines the domain types for the MAG library.
package models

import "time"

// Media roles.
const (
	RolePrimary    = "primary"
	RoleAttachment = "attachment"
)

// Association tags applied to every media item and document.
const (
	TagDepoimento = "depoimento"
	TagArquivos   = "arquivos"
	TagOutros     = "outros"
)

// Relationship entity kinds.
const (
	KindAudio    = "audio"
	KindMarkdown = "markdown"
)

// Package represents one ingested .mag archive.
type Package struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	FileSize   int64     `json:"file_size"`
	TotalFiles int       `json:"total_files"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}

// MediaItem represents one audio entry extracted from a package.
type MediaItem struct {
	ID             string    `json:"id"`
	PackageID      string    `json:"package_id"`
	FileName       string    `json:"file_name"`
	Size           int64     `json:"size"`
	MimeType       string    `json:"mime_type"`
	StoragePath    string    `json:"storage_path"`
	FileURL        string    `json:"file_url"`
	Role           string    `json:"role"`
	AssociationTag string    `json:"association_tag"`
	CreatedAt      time.Time `json:"created_at"`
}

// Document represents one Markdown entry extracted from a package.
type Document struct {
	ID             string    `json:"id"`
	PackageID      string    `json:"package_id"`
	FileName       string    `json:"file_name"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	AssociationTag string    `json:"association_tag"`
	CreatedAt      time.Time `json:"created_at"`
}

// Relationship is a directed edge from a document to a media item or
// another document, inferred from a textual mention.
type Relationship struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	SourceKind string    `json:"source_kind"`
	TargetID   string    `json:"target_id"`
	TargetKind string    `json:"target_kind"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryEntry records one ingestion run.
type HistoryEntry struct {
	ID            string    `json:"id"`
	PackageID     string    `json:"package_id"`
	FileName      string    `json:"file_name"`
	AudioCount    int       `json:"audio_count"`
	MarkdownCount int       `json:"markdown_count"`
	TotalFiles    int       `json:"total_files"`
	Origin        string    `json:"origin"`
	SavedAt       time.Time `json:"saved_at"`
}
