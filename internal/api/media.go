package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// MediaFileHandler serves extracted audio blobs from the storage root.
type MediaFileHandler struct {
	storageRoot string
}

// NewMediaFileHandler creates a handler rooted at the storage directory.
func NewMediaFileHandler(storageRoot string) *MediaFileHandler {
	return &MediaFileHandler{storageRoot: storageRoot}
}

func (h *MediaFileHandler) audioPath() string {
	return filepath.Join(h.storageRoot, "audio")
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the audio directory.
func (h *MediaFileHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.audioPath(), cleaned)
	if !strings.HasPrefix(abs, h.audioPath()+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes audio directory")
	}
	return abs, nil
}

// ServeFile handles GET /storage/audio/{filename}.
func (h *MediaFileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}
