// Package magfile reads .mag (ZIP) archives and classifies their entries.
package magfile

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/magplayer/magd/internal/apperr"
)

// Entry is one file inside a .mag archive. Path uses forward slashes
// regardless of how the archive was built.
type Entry struct {
	Path string
	Size int64
	Data []byte
}

// BaseName returns the entry's file name without its containing folders.
func (e Entry) BaseName() string {
	return path.Base(e.Path)
}

// Open parses raw archive bytes and returns its file entries in archive
// order. Directory entries are skipped. An archive that is not well-formed
// ZIP, or that contains no file entries, fails with apperr.ErrInvalidArchive.
//
// Entries that fail to decompress are returned in skipped rather than
// aborting the whole archive.
func Open(data []byte, maxEntries int) (entries []Entry, skipped []EntryError, err error) {
	r, zerr := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if zerr != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArchive, zerr)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizePath(f.Name)
		if name == "" {
			continue
		}
		if maxEntries > 0 && len(entries) >= maxEntries {
			return nil, nil, fmt.Errorf("%w: more than %d entries", apperr.ErrInvalidArchive, maxEntries)
		}

		content, rerr := readEntry(f)
		if rerr != nil {
			skipped = append(skipped, EntryError{Path: name, Err: rerr.Error()})
			continue
		}
		entries = append(entries, Entry{
			Path: name,
			Size: int64(len(content)),
			Data: content,
		})
	}

	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("%w: no usable entries", apperr.ErrInvalidArchive)
	}
	return entries, skipped, nil
}

// EntryError reports a single archive entry that could not be processed.
type EntryError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return content, nil
}

// normalizePath converts backslash separators to forward slashes and strips
// leading separators.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimLeft(p, "/")
}
