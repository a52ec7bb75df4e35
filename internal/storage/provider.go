// Package storage defines the blob-store abstraction for extracted media.
package storage

// Provider is the interface for persisted media bytes.
type Provider interface {
	// Write atomically writes content to path (relative to the storage root).
	Write(path string, content []byte) error
	// Read returns the raw bytes of the blob at path.
	Read(path string) ([]byte, error)
	// Delete removes the blob at path.
	Delete(path string) error
	// Exists reports whether a blob is present at path.
	Exists(path string) bool
}
