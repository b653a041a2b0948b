package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/repository"
	pkgch "MacroChain/pkg/clickhouse"
	applogger "MacroChain/pkg/logger"

	"github.com/google/uuid"
)

// clickhouseSchema keeps steps and correlations as JSON columns of the chain
// row so that one INSERT writes the whole chain.
var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id           String,
		title        String,
		body         String,
		source       LowCardinality(String),
		url          String,
		published_at DateTime64(3, 'UTC'),
		ingested_at  DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(ingested_at)
	ORDER BY id`,
	`CREATE TABLE IF NOT EXISTS causal_chains (
		id                 String,
		title              String,
		description        String,
		source_document_id String,
		confidence_score   Float64,
		quality_score      Float64,
		prediction_horizon LowCardinality(String),
		investment_thesis  String,
		steps              String,
		correlations       String,
		created_at         DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (source_document_id, id)`,
}

// CHChainStore stores chains in ClickHouse. IDs are UUIDv7 strings so that
// ordering by id is ordering by insertion time.
type CHChainStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewCHChainStore(c *pkgch.Client) *CHChainStore {
	return &CHChainStore{client: c, db: c.DB(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHChainStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHChainStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, clickhouseSchema)
}

func (s *CHChainStore) Save(ctx context.Context, c *models.CausalChain) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("save chain: id: %w", err)
	}
	steps, err := json.Marshal(nonNilSteps(c.Steps))
	if err != nil {
		return fmt.Errorf("save chain: encode steps: %w", err)
	}
	corrs, err := json.Marshal(nonNilCorrelations(c.Correlations))
	if err != nil {
		return fmt.Errorf("save chain: encode correlations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO causal_chains (id, title, description, source_document_id, confidence_score,
			quality_score, prediction_horizon, investment_thesis, steps, correlations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), c.Title, c.Description, c.SourceDocumentID, c.ConfidenceScore,
		c.QualityScore, string(c.PredictionHorizon), c.InvestmentThesis, string(steps), string(corrs),
		c.CreatedAt.UTC())
	if err != nil {
		s.l.Error("clickhouse insert chain error", applogger.Error(err))
		return fmt.Errorf("save chain: %w", err)
	}
	c.ID = id.String()
	return nil
}

// List keeps the newest row per (title, source document) and drops chains
// whose document is gone.
func (s *CHChainStore) List(ctx context.Context, f repository.ListFilter) ([]models.CausalChain, error) {
	q := `
		SELECT id, title, description, source_document_id, confidence_score, quality_score,
			prediction_horizon, investment_thesis, steps, correlations, created_at
		FROM causal_chains
		WHERE source_document_id IN (SELECT id FROM documents FINAL)`
	args := []any{}
	if f.SourceDocumentID != "" {
		q += ` AND source_document_id = ?`
		args = append(args, f.SourceDocumentID)
	}
	q += `
		ORDER BY id DESC
		LIMIT 1 BY title, source_document_id
		LIMIT ?`
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse list chains query error", applogger.Error(err))
		return nil, fmt.Errorf("list chains: %w", err)
	}
	defer rows.Close()

	out := []models.CausalChain{}
	for rows.Next() {
		var (
			c            models.CausalChain
			horizon      string
			steps, corrs string
			created      time.Time
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.SourceDocumentID, &c.ConfidenceScore,
			&c.QualityScore, &horizon, &c.InvestmentThesis, &steps, &corrs, &created); err != nil {
			return nil, fmt.Errorf("scan chain: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &c.Steps); err != nil {
			return nil, fmt.Errorf("decode steps of %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(corrs), &c.Correlations); err != nil {
			return nil, fmt.Errorf("decode correlations of %s: %w", c.ID, err)
		}
		c.PredictionHorizon = models.Horizon(horizon)
		c.CreatedAt = created.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CHChainStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *CHChainStore) Close() error {
	return nil // Managed by pkg
}

// CHDocumentStore keeps documents in a ReplacingMergeTree keyed by id.
type CHDocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewCHDocumentStore(c *pkgch.Client) *CHDocumentStore {
	return &CHDocumentStore{db: c.DB(), now: time.Now}
}

func (s *CHDocumentStore) Save(ctx context.Context, d *models.Document) error {
	if d == nil || d.ID == "" {
		return models.ErrInvalidDocument
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, body, source, url, published_at, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Body, d.Source, d.URL, d.PublishedAt.UTC(), s.now().UTC())
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *CHDocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, source, url, published_at FROM documents FINAL WHERE id = ?`, id).
		Scan(&d.ID, &d.Title, &d.Body, &d.Source, &d.URL, &d.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	d.PublishedAt = d.PublishedAt.UTC()
	return &d, nil
}

func (s *CHDocumentStore) ListSince(ctx context.Context, since time.Time, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, source, url, published_at FROM documents FINAL
		WHERE published_at >= ?
		ORDER BY published_at ASC, id ASC
		LIMIT ?`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Body, &d.Source, &d.URL, &d.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.PublishedAt = d.PublishedAt.UTC()
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Delete issues a lightweight delete; List stops resolving the document's
// chains right away.
func (s *CHDocumentStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func nonNilSteps(s []models.CausalStep) []models.CausalStep {
	if s == nil {
		return []models.CausalStep{}
	}
	return s
}

func nonNilCorrelations(c []models.StockCorrelation) []models.StockCorrelation {
	if c == nil {
		return []models.StockCorrelation{}
	}
	return c
}

var (
	_ repository.ChainStore    = (*CHChainStore)(nil)
	_ repository.DocumentStore = (*CHDocumentStore)(nil)
)
