package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/magplayer/magd/internal/apperr"
	"github.com/magplayer/magd/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "magd-store-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedRecord builds a minimal one-package record: one primary media item,
// one document, one relationship document→media.
func seedRecord(t *testing.T) IngestRecord {
	t.Helper()
	now := time.Now().UTC()
	pkg := models.Package{
		ID:         uuid.NewString(),
		FileName:   "pacote.mag",
		FileSize:   1024,
		TotalFiles: 2,
		Checksum:   "abc",
		CreatedAt:  now,
	}
	media := models.MediaItem{
		ID:             uuid.NewString(),
		PackageID:      pkg.ID,
		FileName:       "Testemunho.mp3",
		Size:           512,
		MimeType:       "audio/mpeg",
		StoragePath:    "audio/" + pkg.ID + "_Testemunho.mp3",
		FileURL:        "/storage/audio/" + pkg.ID + "_Testemunho.mp3",
		Role:           models.RolePrimary,
		AssociationTag: models.TagDepoimento,
		CreatedAt:      now,
	}
	doc := models.Document{
		ID:             uuid.NewString(),
		PackageID:      pkg.ID,
		FileName:       "Arquivos.md",
		Title:          "Relatório",
		Content:        "Veja Testemunho.mp3",
		AssociationTag: models.TagArquivos,
		CreatedAt:      now,
	}
	rel := models.Relationship{
		ID:         uuid.NewString(),
		SourceID:   doc.ID,
		SourceKind: models.KindMarkdown,
		TargetID:   media.ID,
		TargetKind: models.KindAudio,
		CreatedAt:  now,
	}
	return IngestRecord{
		Package:       pkg,
		MediaItems:    []models.MediaItem{media},
		Documents:     []models.Document{doc},
		Relationships: []models.Relationship{rel},
		History: models.HistoryEntry{
			ID:            uuid.NewString(),
			PackageID:     pkg.ID,
			FileName:      pkg.FileName,
			AudioCount:    1,
			MarkdownCount: 1,
			TotalFiles:    2,
			Origin:        "server",
			SavedAt:       now,
		},
	}
}

func TestSaveIngestAndReadBack(t *testing.T) {
	db := testDB(t)
	rec := seedRecord(t)
	if err := db.SaveIngest(rec); err != nil {
		t.Fatalf("SaveIngest: %v", err)
	}

	pkg, err := db.GetPackage(rec.Package.ID)
	if err != nil {
		t.Fatalf("GetPackage: %v", err)
	}
	if pkg.FileName != "pacote.mag" || pkg.TotalFiles != 2 {
		t.Errorf("package = %+v", pkg)
	}

	media, err := db.MediaByPackage(rec.Package.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 1 || media[0].Role != models.RolePrimary {
		t.Errorf("media = %+v", media)
	}

	docs, err := db.DocumentsByPackage(rec.Package.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Title != "Relatório" {
		t.Errorf("docs = %+v", docs)
	}

	rels, err := db.RelationshipsFor(rec.Documents[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 1 || rels[0].TargetID != rec.MediaItems[0].ID {
		t.Errorf("rels = %+v", rels)
	}

	history, err := db.ListHistory(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Origin != "server" {
		t.Errorf("history = %+v", history)
	}
}

func TestMediaByPackagePrimaryFirst(t *testing.T) {
	db := testDB(t)
	rec := seedRecord(t)

	// Prepend an attachment so insertion order puts primary second.
	attachment := rec.MediaItems[0]
	attachment.ID = uuid.NewString()
	attachment.FileName = "intro.mp3"
	attachment.Role = models.RoleAttachment
	attachment.AssociationTag = models.TagOutros
	rec.MediaItems = []models.MediaItem{attachment, rec.MediaItems[0]}

	if err := db.SaveIngest(rec); err != nil {
		t.Fatal(err)
	}
	media, err := db.MediaByPackage(rec.Package.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 2 || media[0].Role != models.RolePrimary {
		t.Errorf("media order = %+v", media)
	}
}

func TestGetPackageNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetPackage("missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMediaItemRemovesEdges(t *testing.T) {
	db := testDB(t)
	rec := seedRecord(t)
	if err := db.SaveIngest(rec); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteMediaItem(rec.MediaItems[0].ID); err != nil {
		t.Fatalf("DeleteMediaItem: %v", err)
	}
	if _, err := db.GetMediaItem(rec.MediaItems[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("media still present: %v", err)
	}
	rels, _ := db.RelationshipsFor(rec.Documents[0].ID)
	if len(rels) != 0 {
		t.Errorf("dangling relationships: %+v", rels)
	}
}

func TestDeleteDocumentRemovesEdges(t *testing.T) {
	db := testDB(t)
	rec := seedRecord(t)
	if err := db.SaveIngest(rec); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteDocument(rec.Documents[0].ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	rels, _ := db.RelationshipsFor(rec.Documents[0].ID)
	if len(rels) != 0 {
		t.Errorf("dangling relationships: %+v", rels)
	}
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	db := testDB(t)
	if err := db.DeleteMediaItem("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("media err = %v", err)
	}
	if err := db.DeleteDocument("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("document err = %v", err)
	}
	if err := db.DeletePackage("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("package err = %v", err)
	}
}

func TestDeletePackageCascades(t *testing.T) {
	db := testDB(t)
	rec := seedRecord(t)
	if err := db.SaveIngest(rec); err != nil {
		t.Fatal(err)
	}

	if err := db.DeletePackage(rec.Package.ID); err != nil {
		t.Fatalf("DeletePackage: %v", err)
	}

	if _, err := db.GetPackage(rec.Package.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("package survived cascade")
	}
	if _, err := db.GetMediaItem(rec.MediaItems[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("media survived cascade")
	}
	if _, err := db.GetDocument(rec.Documents[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("document survived cascade")
	}
	rels, _ := db.RelationshipsFor(rec.Documents[0].ID)
	if len(rels) != 0 {
		t.Error("relationships survived cascade")
	}
	history, _ := db.ListHistory(10)
	if len(history) != 0 {
		t.Error("history survived cascade")
	}
}

func TestSearchSemantics(t *testing.T) {
	db := testDB(t)
	rec := seedRecord(t)
	if err := db.SaveIngest(rec); err != nil {
		t.Fatal(err)
	}

	// Media matches on file name only.
	media, docs, err := db.Search("testemunho")
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 1 {
		t.Errorf("media hits = %d, want 1", len(media))
	}
	// The document's content also mentions Testemunho.mp3.
	if len(docs) != 1 {
		t.Errorf("doc hits = %d, want 1", len(docs))
	}

	// Documents match on title.
	_, docs, err = db.Search("relatório")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("title hits = %d, want 1", len(docs))
	}

	// No hits.
	media, docs, err = db.Search("zzz-missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 0 || len(docs) != 0 {
		t.Errorf("unexpected hits: %v %v", media, docs)
	}

	// Empty term matches everything.
	media, docs, err = db.Search("")
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 1 || len(docs) != 1 {
		t.Errorf("empty term: media=%d docs=%d", len(media), len(docs))
	}
}

func TestListHistoryLimit(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 5; i++ {
		rec := seedRecord(t)
		if err := db.SaveIngest(rec); err != nil {
			t.Fatal(err)
		}
	}
	history, err := db.ListHistory(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Errorf("history = %d, want 3", len(history))
	}
}
