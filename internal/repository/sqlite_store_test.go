package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/repository"
	pkgsqlite "MacroChain/pkg/sqlite"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStores(t *testing.T) (*SQLiteChainStore, *SQLiteDocumentStore) {
	t.Helper()
	c, err := pkgsqlite.NewClient(pkgsqlite.WithPath(filepath.Join(t.TempDir(), "chains.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	chains := NewSQLiteChainStore(c)
	require.NoError(t, chains.Init(context.Background()))
	return chains, NewSQLiteDocumentStore(c)
}

func sampleChain(docID, title string) *models.CausalChain {
	return &models.CausalChain{
		Title:             title,
		Description:       "restrictions -> demand -> recovery",
		SourceDocumentID:  docID,
		ConfidenceScore:   0.63,
		QualityScore:      1,
		PredictionHorizon: models.Horizon3M,
		InvestmentThesis:  "Trigger: restrictions. Opportunity: 005930",
		Steps: []models.CausalStep{
			{Order: 1, Role: models.RoleTrigger, Description: "restrictions announced", AffectedEntity: "semiconductor", EntityKind: models.EntitySector, ImpactDirection: models.ImpactNegative, Confidence: 0.8},
			{Order: 2, Role: models.RoleOutcome, Description: "exports will recover", AffectedEntity: "Samsung Electronics", EntityKind: models.EntityCompany, ImpactDirection: models.ImpactPositive, Confidence: 0.4},
		},
		Correlations: []models.StockCorrelation{
			{Symbol: "005930", Name: "Samsung Electronics", Kind: models.CorrelationDirect, ExpectedImpact: models.ExpectStrongPositive, ImpactProbability: 1, Reasoning: "mentioned"},
		},
		CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func saveDoc(t *testing.T, s *SQLiteDocumentStore, id string) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), &models.Document{
		ID:          id,
		Title:       "Doc " + id,
		Body:        "body",
		PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
}

func TestSQLiteChainRoundTrip(t *testing.T) {
	ctx := context.Background()
	chains, docs := newSQLiteStores(t)
	saveDoc(t, docs, "d1")

	in := sampleChain("d1", "Export curbs")
	require.NoError(t, chains.Save(ctx, in))
	require.NotEmpty(t, in.ID)

	got, err := chains.List(ctx, repository.ListFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(*in, got[0]); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteListKeepsLatestPerTitleAndDocument(t *testing.T) {
	ctx := context.Background()
	chains, docs := newSQLiteStores(t)
	saveDoc(t, docs, "d1")
	saveDoc(t, docs, "d2")

	first := sampleChain("d1", "Export curbs")
	require.NoError(t, chains.Save(ctx, first))
	second := sampleChain("d1", "Export curbs")
	second.ConfidenceScore = 0.9
	require.NoError(t, chains.Save(ctx, second))
	other := sampleChain("d2", "Export curbs")
	require.NoError(t, chains.Save(ctx, other))

	got, err := chains.List(ctx, repository.ListFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, other.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Equal(t, 0.9, got[1].ConfidenceScore)

	filtered, err := chains.List(ctx, repository.ListFilter{SourceDocumentID: "d1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, second.ID, filtered[0].ID)

	limited, err := chains.List(ctx, repository.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteListSkipsChainsWithoutDocument(t *testing.T) {
	ctx := context.Background()
	chains, docs := newSQLiteStores(t)
	saveDoc(t, docs, "d1")

	require.NoError(t, chains.Save(ctx, sampleChain("d1", "kept")))
	require.NoError(t, chains.Save(ctx, sampleChain("ghost", "orphan")))

	got, err := chains.List(ctx, repository.ListFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Title)

	require.NoError(t, docs.Delete(ctx, "d1"))
	got, err = chains.List(ctx, repository.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestSQLiteSaveRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	chains, docs := newSQLiteStores(t)
	saveDoc(t, docs, "d1")

	bad := sampleChain("d1", "dup steps")
	bad.Steps[1].Order = 1 // violates (chain_id, step_order)
	require.Error(t, chains.Save(ctx, bad))
	assert.Empty(t, bad.ID)

	got, err := chains.List(ctx, repository.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	var n int
	require.NoError(t, chains.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM causal_steps`).Scan(&n))
	assert.Zero(t, n)
}

func TestSQLiteDocumentStore(t *testing.T) {
	ctx := context.Background()
	_, docs := newSQLiteStores(t)

	_, err := docs.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	assert.ErrorIs(t, docs.Save(ctx, &models.Document{}), models.ErrInvalidDocument)

	d := &models.Document{ID: "d1", Title: "Old", Body: "b", PublishedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, docs.Save(ctx, d))
	d.Title = "New"
	require.NoError(t, docs.Save(ctx, d))

	got, err := docs.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, d, got)

	later := &models.Document{ID: "d2", Body: "b", PublishedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, docs.Save(ctx, later))

	since, err := docs.ListSince(ctx, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "d2", since[0].ID)
}
