package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/repository"
	pkgsqlite "MacroChain/pkg/sqlite"
)

// SQLiteDocumentStore keeps the documents chains are extracted from.
type SQLiteDocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteDocumentStore(c *pkgsqlite.Client) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{db: c.DB(), now: time.Now}
}

// Save upserts the document by id.
func (s *SQLiteDocumentStore) Save(ctx context.Context, d *models.Document) error {
	if d == nil || d.ID == "" {
		return models.ErrInvalidDocument
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, body, source, url, published_at, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			source = excluded.source,
			url = excluded.url,
			published_at = excluded.published_at`,
		d.ID, d.Title, d.Body, d.Source, d.URL, formatSQLiteTime(d.PublishedAt), formatSQLiteTime(s.now()))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *SQLiteDocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, source, url, published_at FROM documents WHERE id = ?`, id)
	d, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListSince returns documents published at or after since, oldest first.
func (s *SQLiteDocumentStore) ListSince(ctx context.Context, since time.Time, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, source, url, published_at FROM documents
		WHERE published_at >= ?
		ORDER BY published_at ASC, id ASC
		LIMIT ?`, formatSQLiteTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteDocumentStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(r rowScanner) (*models.Document, error) {
	var d models.Document
	var published string
	if err := r.Scan(&d.ID, &d.Title, &d.Body, &d.Source, &d.URL, &published); err != nil {
		return nil, err
	}
	t, err := parseSQLiteTime(published)
	if err != nil {
		return nil, err
	}
	d.PublishedAt = t
	return &d, nil
}

var _ repository.DocumentStore = (*SQLiteDocumentStore)(nil)
