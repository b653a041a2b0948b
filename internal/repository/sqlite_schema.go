package repository

import (
	"fmt"
	"time"
)

// sqliteTimeLayout is fixed-width so stored timestamps sort lexicographically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		body         TEXT NOT NULL,
		source       TEXT NOT NULL DEFAULT '',
		url          TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL,
		ingested_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_published ON documents(published_at)`,
	`CREATE TABLE IF NOT EXISTS causal_chains (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL,
		source_document_id TEXT NOT NULL,
		confidence_score   REAL NOT NULL,
		quality_score      REAL NOT NULL,
		prediction_horizon TEXT NOT NULL,
		investment_thesis  TEXT NOT NULL,
		created_at         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chains_dedup ON causal_chains(title, source_document_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_chains_document ON causal_chains(source_document_id)`,
	`CREATE TABLE IF NOT EXISTS causal_steps (
		chain_id         INTEGER NOT NULL REFERENCES causal_chains(id) ON DELETE CASCADE,
		step_order       INTEGER NOT NULL,
		role             TEXT NOT NULL,
		description      TEXT NOT NULL,
		affected_entity  TEXT NOT NULL,
		entity_kind      TEXT NOT NULL,
		impact_direction TEXT NOT NULL,
		confidence       REAL NOT NULL,
		PRIMARY KEY (chain_id, step_order)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_correlations (
		chain_id           INTEGER NOT NULL REFERENCES causal_chains(id) ON DELETE CASCADE,
		position           INTEGER NOT NULL,
		symbol             TEXT NOT NULL,
		name               TEXT NOT NULL,
		kind               TEXT NOT NULL,
		expected_impact    TEXT NOT NULL,
		impact_probability REAL NOT NULL,
		reasoning          TEXT NOT NULL,
		PRIMARY KEY (chain_id, position)
	)`,
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
