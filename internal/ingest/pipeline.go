// Package ingest turns a .mag archive into persisted packages, media items,
// documents, and relationships.
package ingest

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/magplayer/magd/internal/checksum"
	"github.com/magplayer/magd/internal/magfile"
	"github.com/magplayer/magd/internal/models"
	"github.com/magplayer/magd/internal/parser"
	"github.com/magplayer/magd/internal/storage"
	"github.com/magplayer/magd/internal/store"
)

// AudioDir is the blob subdirectory that holds extracted audio.
const AudioDir = "audio"

var whitespaceRe = regexp.MustCompile(`\s+`)

// Report is the structured result of one ingestion run. MediaItems are
// ordered with the primary entry (if any) first, everything else in archive
// order.
type Report struct {
	Package       models.Package        `json:"package"`
	MediaItems    []models.MediaItem    `json:"media_items"`
	Documents     []models.Document     `json:"documents"`
	Relationships []models.Relationship `json:"relationships"`
	Errors        []magfile.EntryError  `json:"errors,omitempty"`
}

// Pipeline runs the ingestion steps for one archive and persists the result.
type Pipeline struct {
	store      store.Store
	blobs      storage.Provider
	logger     *slog.Logger
	maxEntries int
}

// New creates a Pipeline. maxEntries bounds the number of file entries a
// single archive may carry; zero means unbounded.
func New(st store.Store, blobs storage.Provider, logger *slog.Logger, maxEntries int) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: st, blobs: blobs, logger: logger, maxEntries: maxEntries}
}

// Ingest processes raw archive bytes under the given original file name and
// persists everything in one transaction. origin is recorded in the
// ingestion history ("server", "inbox").
//
// Archive-level failures abort with no writes. Failures on individual
// entries (corrupt entry, blob write error) skip the entry and surface in
// Report.Errors.
func (p *Pipeline) Ingest(fileName string, data []byte, origin string) (*Report, error) {
	entries, skipped, err := magfile.Open(data, p.maxEntries)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pkg := models.Package{
		ID:         uuid.NewString(),
		FileName:   fileName,
		FileSize:   int64(len(data)),
		TotalFiles: len(entries),
		Checksum:   checksum.Sum(data),
		CreatedAt:  now,
	}

	report := &Report{Package: pkg, Errors: skipped}
	for _, s := range skipped {
		p.logger.Warn("ingest: skipping unreadable entry",
			slog.String("package", pkg.ID), slog.String("path", s.Path), slog.String("error", s.Err))
	}

	primary := primaryIndex(entries)

	// mediaByBase / docByBase resolve references later; first match in
	// enumeration order wins, audio before markdown.
	var (
		media        []models.MediaItem
		docs         []models.Document
		docEntryIdx  []int
		mediaByBase  = map[string]*models.MediaItem{}
		docByBase    = map[string]*models.Document{}
		writtenBlobs []string
	)

	cleanup := func() {
		for _, path := range writtenBlobs {
			if err := p.blobs.Delete(path); err != nil {
				p.logger.Warn("ingest: blob cleanup failed", slog.String("path", path), slog.String("error", err.Error()))
			}
		}
	}

	for i, e := range entries {
		switch magfile.Classify(e.Path) {
		case magfile.KindAudio:
			base := e.BaseName()
			blobName := sanitizeBlobName(pkg.ID + "_" + base)
			blobPath := AudioDir + "/" + blobName
			if err := p.blobs.Write(blobPath, e.Data); err != nil {
				p.logger.Warn("ingest: audio write failed",
					slog.String("package", pkg.ID), slog.String("path", e.Path), slog.String("error", err.Error()))
				report.Errors = append(report.Errors, magfile.EntryError{Path: e.Path, Err: err.Error()})
				continue
			}
			writtenBlobs = append(writtenBlobs, blobPath)

			role := models.RoleAttachment
			if i == primary {
				role = models.RolePrimary
			}
			m := models.MediaItem{
				ID:             uuid.NewString(),
				PackageID:      pkg.ID,
				FileName:       base,
				Size:           e.Size,
				MimeType:       magfile.MIMEType(e.Path),
				StoragePath:    blobPath,
				FileURL:        "/storage/" + blobPath,
				Role:           role,
				AssociationTag: tagFor(e.Path, i == primary),
				CreatedAt:      now,
			}
			media = append(media, m)
			if _, ok := mediaByBase[base]; !ok {
				mediaByBase[base] = &media[len(media)-1]
			}

		case magfile.KindMarkdown:
			base := e.BaseName()
			content := string(e.Data)
			d := models.Document{
				ID:             uuid.NewString(),
				PackageID:      pkg.ID,
				FileName:       base,
				Title:          parser.ExtractTitle(content, base),
				Content:        content,
				AssociationTag: tagFor(e.Path, false),
				CreatedAt:      now,
			}
			docs = append(docs, d)
			docEntryIdx = append(docEntryIdx, i)
			if _, ok := docByBase[base]; !ok {
				docByBase[base] = &docs[len(docs)-1]
			}
		}
	}

	rels := p.buildRelationships(entries, docs, docEntryIdx, mediaByBase, docByBase, now)

	record := store.IngestRecord{
		Package:       pkg,
		MediaItems:    media,
		Documents:     docs,
		Relationships: rels,
		History: models.HistoryEntry{
			ID:            uuid.NewString(),
			PackageID:     pkg.ID,
			FileName:      fileName,
			AudioCount:    len(media),
			MarkdownCount: len(docs),
			TotalFiles:    len(entries),
			Origin:        origin,
			SavedAt:       now,
		},
	}
	if err := p.store.SaveIngest(record); err != nil {
		cleanup()
		return nil, fmt.Errorf("ingest: persist: %w", err)
	}

	report.MediaItems = primaryFirst(media)
	report.Documents = docs
	report.Relationships = rels

	p.logger.Info("ingest: package processed",
		slog.String("package", pkg.ID),
		slog.String("file_name", fileName),
		slog.Int("media", len(media)),
		slog.Int("documents", len(docs)),
		slog.Int("relationships", len(rels)),
		slog.String("origin", origin))

	return report, nil
}

// buildRelationships resolves each document's detected references against
// the package's media first, then its other documents. Unresolvable names
// are dropped; self references are excluded; duplicate edges collapse.
func (p *Pipeline) buildRelationships(
	entries []magfile.Entry,
	docs []models.Document,
	docEntryIdx []int,
	mediaByBase map[string]*models.MediaItem,
	docByBase map[string]*models.Document,
	now time.Time,
) []models.Relationship {
	var rels []models.Relationship

	for di := range docs {
		doc := &docs[di]

		// Candidates are the base names of every other entry, in archive
		// enumeration order.
		var candidates []string
		for i, e := range entries {
			if i == docEntryIdx[di] {
				continue
			}
			if k := magfile.Classify(e.Path); k != magfile.KindAudio && k != magfile.KindMarkdown {
				continue
			}
			candidates = append(candidates, e.BaseName())
		}

		seen := map[string]struct{}{}
		for _, ref := range parser.DetectReferences(doc.Content, candidates) {
			var targetID, targetKind string
			if m, ok := mediaByBase[ref]; ok {
				targetID, targetKind = m.ID, models.KindAudio
			} else if d, ok := docByBase[ref]; ok && d.ID != doc.ID {
				targetID, targetKind = d.ID, models.KindMarkdown
			} else {
				continue
			}
			if targetID == doc.ID {
				continue
			}
			if _, dup := seen[targetID]; dup {
				continue
			}
			seen[targetID] = struct{}{}
			rels = append(rels, models.Relationship{
				ID:         uuid.NewString(),
				SourceID:   doc.ID,
				SourceKind: models.KindMarkdown,
				TargetID:   targetID,
				TargetKind: targetKind,
				CreatedAt:  now,
			})
		}
	}
	return rels
}

// primaryFirst returns media reordered so any primary entry leads, with the
// original order otherwise preserved.
func primaryFirst(media []models.MediaItem) []models.MediaItem {
	out := make([]models.MediaItem, 0, len(media))
	for _, m := range media {
		if m.Role == models.RolePrimary {
			out = append(out, m)
		}
	}
	for _, m := range media {
		if m.Role != models.RolePrimary {
			out = append(out, m)
		}
	}
	return out
}

// sanitizeBlobName collapses whitespace runs to underscores.
func sanitizeBlobName(name string) string {
	return whitespaceRe.ReplaceAllString(name, "_")
}
