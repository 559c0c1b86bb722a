// Package store maps logical media names to registered physical files.
// The planner only ever sees logical references; this package owns the
// name -> path translation.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// MediaFile is one registered media asset.
type MediaFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	MediaType string    `json:"media_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FileStore resolves logical source references to registered files.
// ResolveByName returns nil without error when no file matches.
type FileStore interface {
	Register(ctx context.Context, file *MediaFile) error
	ResolveByName(ctx context.Context, name string) (*MediaFile, error)
	Get(ctx context.Context, id string) (*MediaFile, error)
	List(ctx context.Context) ([]*MediaFile, error)
}

// NewID returns a fresh file id.
func NewID() string {
	return uuid.NewString()
}

type SQLiteFileStore struct {
	db *sql.DB
}

func NewSQLiteFileStore(db *sql.DB) *SQLiteFileStore {
	return &SQLiteFileStore{db: db}
}

func (s *SQLiteFileStore) Register(ctx context.Context, f *MediaFile) error {
	if f.ID == "" {
		f.ID = NewID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_files (id, name, path, media_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			path = excluded.path,
			media_type = excluded.media_type
	`, f.ID, f.Name, f.Path, f.MediaType, f.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *SQLiteFileStore) ResolveByName(ctx context.Context, name string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, path, media_type, created_at
		FROM media_files WHERE name = ?
	`, name)
	return scanMediaFile(row)
}

func (s *SQLiteFileStore) Get(ctx context.Context, id string) (*MediaFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, path, media_type, created_at
		FROM media_files WHERE id = ?
	`, id)
	return scanMediaFile(row)
}

func (s *SQLiteFileStore) List(ctx context.Context) ([]*MediaFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, path, media_type, created_at
		FROM media_files ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*MediaFile
	for rows.Next() {
		var f MediaFile
		var createdAt string
		if err := rows.Scan(&f.ID, &f.Name, &f.Path, &f.MediaType, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		files = append(files, &f)
	}
	return files, rows.Err()
}

func scanMediaFile(row *sql.Row) (*MediaFile, error) {
	var f MediaFile
	var createdAt string
	err := row.Scan(&f.ID, &f.Name, &f.Path, &f.MediaType, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &f, nil
}
