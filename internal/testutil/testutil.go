// Package testutil provides shared test helpers for databases, blob
// storage, and .mag archive fixtures.
package testutil

import (
	"archive/zip"
	"bytes"
	"os"
	"testing"

	"github.com/magplayer/magd/internal/storage"
	"github.com/magplayer/magd/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "magd-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBlobs creates a temporary blob storage directory with an FS provider.
func TestBlobs(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, blobs
}

// ArchiveFile is one entry for MagArchive. Entry order in the resulting
// archive follows slice order.
type ArchiveFile struct {
	Name string
	Data []byte
}

// MagArchive builds an in-memory ZIP archive from the given files.
func MagArchive(t *testing.T, files ...ArchiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			t.Fatalf("zip write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// Text is a convenience constructor for a Markdown archive entry.
func Text(name, content string) ArchiveFile {
	return ArchiveFile{Name: name, Data: []byte(content)}
}
