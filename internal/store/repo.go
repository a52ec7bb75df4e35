package store

import (
	"database/sql"
	"fmt"

	"github.com/magplayer/magd/internal/apperr"
	"github.com/magplayer/magd/internal/models"
)

// SaveIngest persists one ingestion run atomically: the package row, its
// media items and documents, the inferred relationships, and the history
// entry. Either everything commits or nothing does.
func (db *DB) SaveIngest(rec IngestRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	p := rec.Package
	_, err = tx.Exec(`
		INSERT INTO mags (id, file_name, file_size, total_files, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.FileName, p.FileSize, p.TotalFiles, p.Checksum, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert package: %w", err)
	}

	for _, m := range rec.MediaItems {
		_, err = tx.Exec(`
			INSERT INTO media_items (id, package_id, file_name, size, mime_type, storage_path, file_url, role, association_tag, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.PackageID, m.FileName, m.Size, m.MimeType, m.StoragePath, m.FileURL, m.Role, m.AssociationTag, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("store: insert media item %s: %w", m.FileName, err)
		}
	}

	for _, d := range rec.Documents {
		_, err = tx.Exec(`
			INSERT INTO documents (id, package_id, file_name, title, content, association_tag, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, d.ID, d.PackageID, d.FileName, d.Title, d.Content, d.AssociationTag, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("store: insert document %s: %w", d.FileName, err)
		}
	}

	for _, r := range rec.Relationships {
		_, err = tx.Exec(`
			INSERT OR IGNORE INTO relationships (id, source_id, source_kind, target_id, target_kind, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, r.SourceID, r.SourceKind, r.TargetID, r.TargetKind, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("store: insert relationship: %w", err)
		}
	}

	h := rec.History
	_, err = tx.Exec(`
		INSERT INTO ingest_history (id, package_id, file_name, audio_count, markdown_count, total_files, origin, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.PackageID, h.FileName, h.AudioCount, h.MarkdownCount, h.TotalFiles, h.Origin, h.SavedAt)
	if err != nil {
		return fmt.Errorf("store: insert history: %w", err)
	}

	return tx.Commit()
}

const packageCols = `id, file_name, file_size, total_files, checksum, created_at`

func scanPackage(row interface{ Scan(...any) error }) (*models.Package, error) {
	var p models.Package
	err := row.Scan(&p.ID, &p.FileName, &p.FileSize, &p.TotalFiles, &p.Checksum, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPackage returns one package by id.
func (db *DB) GetPackage(id string) (*models.Package, error) {
	p, err := scanPackage(db.conn.QueryRow(`SELECT `+packageCols+` FROM mags WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get package: %w", err)
	}
	return p, nil
}

// ListPackages returns all packages, newest first.
func (db *DB) ListPackages() ([]models.Package, error) {
	rows, err := db.conn.Query(`SELECT ` + packageCols + ` FROM mags ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list packages: %w", err)
	}
	defer rows.Close()

	var out []models.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeletePackage removes a package and everything derived from it: media
// rows, document rows, relationships touching either, and history entries.
// Callers are responsible for removing media blobs first.
func (db *DB) DeletePackage(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`
		DELETE FROM relationships WHERE source_id IN (SELECT id FROM documents WHERE package_id = ?)
		   OR target_id IN (SELECT id FROM documents WHERE package_id = ?)
		   OR target_id IN (SELECT id FROM media_items WHERE package_id = ?)
	`, id, id, id)
	_, _ = tx.Exec(`DELETE FROM media_items WHERE package_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM documents WHERE package_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM ingest_history WHERE package_id = ?`, id)

	res, err := tx.Exec(`DELETE FROM mags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete package: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}

	return tx.Commit()
}

const mediaCols = `id, package_id, file_name, size, mime_type, storage_path, file_url, role, association_tag, created_at`

func scanMedia(row interface{ Scan(...any) error }) (*models.MediaItem, error) {
	var m models.MediaItem
	err := row.Scan(&m.ID, &m.PackageID, &m.FileName, &m.Size, &m.MimeType,
		&m.StoragePath, &m.FileURL, &m.Role, &m.AssociationTag, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMediaItem returns one media item by id.
func (db *DB) GetMediaItem(id string) (*models.MediaItem, error) {
	m, err := scanMedia(db.conn.QueryRow(`SELECT `+mediaCols+` FROM media_items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get media item: %w", err)
	}
	return m, nil
}

// ListMediaItems returns all media items, newest first.
func (db *DB) ListMediaItems() ([]models.MediaItem, error) {
	return db.queryMedia(`SELECT ` + mediaCols + ` FROM media_items ORDER BY created_at DESC, id`)
}

// MediaByPackage returns a package's media items in insertion order,
// primary first.
func (db *DB) MediaByPackage(packageID string) ([]models.MediaItem, error) {
	return db.queryMedia(`
		SELECT `+mediaCols+` FROM media_items
		WHERE package_id = ?
		ORDER BY (role = 'primary') DESC, rowid
	`, packageID)
}

func (db *DB) queryMedia(query string, args ...any) ([]models.MediaItem, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query media: %w", err)
	}
	defer rows.Close()

	var out []models.MediaItem
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// DeleteMediaItem removes a media row and any relationships targeting it.
func (db *DB) DeleteMediaItem(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete media item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	_, _ = tx.Exec(`DELETE FROM relationships WHERE target_id = ?`, id)

	return tx.Commit()
}

const documentCols = `id, package_id, file_name, title, content, association_tag, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.PackageID, &d.FileName, &d.Title, &d.Content, &d.AssociationTag, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDocument returns one document by id.
func (db *DB) GetDocument(id string) (*models.Document, error) {
	d, err := scanDocument(db.conn.QueryRow(`SELECT `+documentCols+` FROM documents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns all documents, newest first.
func (db *DB) ListDocuments() ([]models.Document, error) {
	return db.queryDocuments(`SELECT ` + documentCols + ` FROM documents ORDER BY created_at DESC, id`)
}

// DocumentsByPackage returns a package's documents in insertion order.
func (db *DB) DocumentsByPackage(packageID string) ([]models.Document, error) {
	return db.queryDocuments(`SELECT `+documentCols+` FROM documents WHERE package_id = ? ORDER BY rowid`, packageID)
}

func (db *DB) queryDocuments(query string, args ...any) ([]models.Document, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document row and any relationships from or to it.
func (db *DB) DeleteDocument(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	_, _ = tx.Exec(`DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, id, id)

	return tx.Commit()
}

// RelationshipsFor returns all relationships with the given source id.
func (db *DB) RelationshipsFor(sourceID string) ([]models.Relationship, error) {
	rows, err := db.conn.Query(`
		SELECT id, source_id, source_kind, target_id, target_kind, created_at
		FROM relationships WHERE source_id = ? ORDER BY rowid
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("store: relationships: %w", err)
	}
	defer rows.Close()

	var out []models.Relationship
	for rows.Next() {
		var r models.Relationship
		if err := rows.Scan(&r.ID, &r.SourceID, &r.SourceKind, &r.TargetID, &r.TargetKind, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Search performs a case-insensitive substring match: media items by file
// name; documents by file name, title, or content. An empty term matches
// everything.
func (db *DB) Search(term string) ([]models.MediaItem, []models.Document, error) {
	like := "%" + term + "%"
	media, err := db.queryMedia(`
		SELECT `+mediaCols+` FROM media_items
		WHERE file_name LIKE ? ORDER BY created_at DESC, id
	`, like)
	if err != nil {
		return nil, nil, err
	}
	docs, err := db.queryDocuments(`
		SELECT `+documentCols+` FROM documents
		WHERE file_name LIKE ? OR title LIKE ? OR content LIKE ?
		ORDER BY created_at DESC, id
	`, like, like, like)
	if err != nil {
		return nil, nil, err
	}
	return media, docs, nil
}

// ListHistory returns the most recent ingestion history entries.
func (db *DB) ListHistory(limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.conn.Query(`
		SELECT id, package_id, file_name, audio_count, markdown_count, total_files, origin, saved_at
		FROM ingest_history ORDER BY saved_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.ID, &h.PackageID, &h.FileName, &h.AudioCount, &h.MarkdownCount, &h.TotalFiles, &h.Origin, &h.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
