package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/repository"
	applogger "MacroChain/pkg/logger"
	pkgsqlite "MacroChain/pkg/sqlite"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// SQLiteChainStore writes a chain with its steps and correlations in one
// transaction and collapses duplicates on read.
type SQLiteChainStore struct {
	client *pkgsqlite.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewSQLiteChainStore(c *pkgsqlite.Client) *SQLiteChainStore {
	return &SQLiteChainStore{client: c, db: c.DB(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *SQLiteChainStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the documents and chain tables.
func (s *SQLiteChainStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, sqliteSchema)
}

// Save inserts the chain and assigns its ID. Nothing is written on error.
func (s *SQLiteChainStore) Save(ctx context.Context, c *models.CausalChain) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save chain: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO causal_chains (title, description, source_document_id, confidence_score,
			quality_score, prediction_horizon, investment_thesis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Title, c.Description, c.SourceDocumentID, c.ConfidenceScore,
		c.QualityScore, string(c.PredictionHorizon), c.InvestmentThesis, formatSQLiteTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("save chain: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save chain: last id: %w", err)
	}

	for _, st := range c.Steps {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO causal_steps (chain_id, step_order, role, description, affected_entity,
				entity_kind, impact_direction, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, st.Order, string(st.Role), st.Description, st.AffectedEntity,
			string(st.EntityKind), string(st.ImpactDirection), st.Confidence); err != nil {
			return fmt.Errorf("save chain: step %d: %w", st.Order, err)
		}
	}
	for i, co := range c.Correlations {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO stock_correlations (chain_id, position, symbol, name, kind,
				expected_impact, impact_probability, reasoning)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, co.Symbol, co.Name, string(co.Kind),
			string(co.ExpectedImpact), co.ImpactProbability, co.Reasoning); err != nil {
			return fmt.Errorf("save chain: correlation %s: %w", co.Symbol, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save chain: commit: %w", err)
	}
	c.ID = strconv.FormatInt(id, 10)
	return nil
}

// List returns the newest chain per (title, source document) whose document
// still exists, newest first.
func (s *SQLiteChainStore) List(ctx context.Context, f repository.ListFilter) ([]models.CausalChain, error) {
	limit := clampLimit(f.Limit)

	q := `
		SELECT c.id, c.title, c.description, c.source_document_id, c.confidence_score,
			c.quality_score, c.prediction_horizon, c.investment_thesis, c.created_at
		FROM causal_chains c
		JOIN documents d ON d.id = c.source_document_id
		WHERE c.id IN (SELECT MAX(id) FROM causal_chains GROUP BY title, source_document_id)`
	args := []any{}
	if f.SourceDocumentID != "" {
		q += ` AND c.source_document_id = ?`
		args = append(args, f.SourceDocumentID)
	}
	q += ` ORDER BY c.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("sqlite list chains query error", applogger.Error(err))
		return nil, fmt.Errorf("list chains: %w", err)
	}
	defer rows.Close()

	var chains []models.CausalChain
	index := make(map[int64]int)
	for rows.Next() {
		var (
			c       models.CausalChain
			id      int64
			horizon string
			created string
		)
		if err := rows.Scan(&id, &c.Title, &c.Description, &c.SourceDocumentID, &c.ConfidenceScore,
			&c.QualityScore, &horizon, &c.InvestmentThesis, &created); err != nil {
			return nil, fmt.Errorf("scan chain: %w", err)
		}
		if c.CreatedAt, err = parseSQLiteTime(created); err != nil {
			return nil, err
		}
		c.ID = strconv.FormatInt(id, 10)
		c.PredictionHorizon = models.Horizon(horizon)
		c.Steps = []models.CausalStep{}
		c.Correlations = []models.StockCorrelation{}
		index[id] = len(chains)
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(chains) == 0 {
		return []models.CausalChain{}, nil
	}

	if err := s.attachSteps(ctx, chains, index); err != nil {
		return nil, err
	}
	if err := s.attachCorrelations(ctx, chains, index); err != nil {
		return nil, err
	}
	return chains, nil
}

func (s *SQLiteChainStore) attachSteps(ctx context.Context, chains []models.CausalChain, index map[int64]int) error {
	in, args := inClause(index)
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain_id, step_order, role, description, affected_entity, entity_kind,
			impact_direction, confidence
		FROM causal_steps WHERE chain_id IN (`+in+`)
		ORDER BY chain_id, step_order`, args...)
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chainID               int64
			st                    models.CausalStep
			role, kind, direction string
		)
		if err := rows.Scan(&chainID, &st.Order, &role, &st.Description, &st.AffectedEntity,
			&kind, &direction, &st.Confidence); err != nil {
			return fmt.Errorf("scan step: %w", err)
		}
		st.Role = models.StepRole(role)
		st.EntityKind = models.EntityKind(kind)
		st.ImpactDirection = models.ImpactDirection(direction)
		i := index[chainID]
		chains[i].Steps = append(chains[i].Steps, st)
	}
	return rows.Err()
}

func (s *SQLiteChainStore) attachCorrelations(ctx context.Context, chains []models.CausalChain, index map[int64]int) error {
	in, args := inClause(index)
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain_id, symbol, name, kind, expected_impact, impact_probability, reasoning
		FROM stock_correlations WHERE chain_id IN (`+in+`)
		ORDER BY chain_id, position`, args...)
	if err != nil {
		return fmt.Errorf("list correlations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chainID      int64
			co           models.StockCorrelation
			kind, impact string
		)
		if err := rows.Scan(&chainID, &co.Symbol, &co.Name, &kind, &impact,
			&co.ImpactProbability, &co.Reasoning); err != nil {
			return fmt.Errorf("scan correlation: %w", err)
		}
		co.Kind = models.CorrelationKind(kind)
		co.ExpectedImpact = models.ExpectedImpact(impact)
		i := index[chainID]
		chains[i].Correlations = append(chains[i].Correlations, co)
	}
	return rows.Err()
}

func (s *SQLiteChainStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *SQLiteChainStore) Close() error {
	return nil // Managed by pkg
}

func inClause(index map[int64]int) (string, []any) {
	ph := make([]string, 0, len(index))
	args := make([]any, 0, len(index))
	for id := range index {
		ph = append(ph, "?")
		args = append(args, id)
	}
	return strings.Join(ph, ","), args
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}

var _ repository.ChainStore = (*SQLiteChainStore)(nil)
