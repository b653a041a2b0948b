package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, "chains.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(2000)",
		buildDSN(ClientConfig{Path: "chains.db", BusyTimeout: 2 * time.Second}))
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)", buildDSN(ClientConfig{Path: ":memory:"}))
}

func TestClientEnforcesForeignKeys(t *testing.T) {
	c, err := NewClient(WithPath(filepath.Join(t.TempDir(), "fk.db")))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.InitSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS parent (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS child (parent_id INTEGER NOT NULL REFERENCES parent(id) ON DELETE CASCADE)`,
	}))

	_, err = c.DB().ExecContext(ctx, `INSERT INTO child (parent_id) VALUES (42)`)
	assert.Error(t, err)
	assert.NoError(t, c.Health(ctx))
}
