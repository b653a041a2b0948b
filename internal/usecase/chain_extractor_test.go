package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/service"
	pkgcache "MacroChain/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type extractorFixture struct {
	ext     *ChainExtractor
	docs    *memDocs
	chains  *memChains
	pub     *recordingPublisher
	cache   *pkgcache.MemoryCache
	metrics *fakeMetrics
	engine  *stubExtractor
}

func newExtractorFixture(t *testing.T, opts ...ExtractorOption) *extractorFixture {
	t.Helper()
	f := &extractorFixture{
		docs:    newMemDocs(),
		chains:  &memChains{},
		pub:     &recordingPublisher{},
		cache:   pkgcache.NewMemoryCache(),
		metrics: newFakeMetrics(),
		engine:  &stubExtractor{},
	}
	t.Cleanup(func() { _ = f.cache.Close() })

	base := []ExtractorOption{
		WithChainPublisher(f.pub),
		WithLocker(f.cache, time.Minute),
		WithListCache(f.cache),
	}
	f.ext = NewChainExtractor(f.engine, f.docs, f.chains, f.metrics, append(base, opts...)...)
	return f
}

func TestExtractAndStoreStoresChain(t *testing.T) {
	ctx := context.Background()
	f := newExtractorFixture(t)
	require.NoError(t, f.cache.Set(ctx, listCachePrefix+"::20", []models.CausalChain{}, time.Minute))

	out, err := f.ext.ExtractAndStore(ctx, &models.Document{ID: "d1", Body: "chain text"})
	require.NoError(t, err)
	require.NotNil(t, out.Chain)
	assert.Equal(t, "1", out.Chain.ID)
	assert.Equal(t, service.ReasonNone, out.Reason)

	_, err = f.docs.Get(ctx, "d1")
	assert.NoError(t, err)
	assert.Equal(t, 1, f.chains.count())
	assert.Equal(t, []string{"1"}, f.pub.chains)
	assert.Equal(t, 1, f.metrics.extraction(ExtractionStored))

	var cached []models.CausalChain
	assert.ErrorIs(t, f.cache.Get(ctx, listCachePrefix+"::20", &cached), pkgcache.ErrCacheMiss)

	// lock released
	ok, err := f.cache.TryLock(ctx, lockKey("d1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractAndStoreNegativeOutcome(t *testing.T) {
	ctx := context.Background()
	f := newExtractorFixture(t)

	out, err := f.ext.ExtractAndStore(ctx, &models.Document{ID: "d1", Body: "sunny weather"})
	require.NoError(t, err)
	assert.Nil(t, out.Chain)
	assert.Equal(t, service.ReasonNoEvent, out.Reason)
	assert.Zero(t, f.chains.count())
	assert.Empty(t, f.pub.chains)
	assert.Equal(t, 1, f.metrics.extraction(string(service.ReasonNoEvent)))

	_, err = f.docs.Get(ctx, "d1")
	assert.NoError(t, err, "document is kept for later re-extraction")
}

func TestExtractAndStoreRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	f := newExtractorFixture(t)

	ok, err := f.cache.TryLock(ctx, lockKey("d1"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.ext.ExtractAndStore(ctx, &models.Document{ID: "d1", Body: "chain text"})
	assert.ErrorIs(t, err, models.ErrExtractionInFlight)
	assert.Zero(t, f.chains.count())
}

func TestExtractAndStoreInvalidDocument(t *testing.T) {
	f := newExtractorFixture(t)
	for _, d := range []*models.Document{nil, {Body: "chain"}, {ID: "x", Body: " \n "}} {
		_, err := f.ext.ExtractAndStore(context.Background(), d)
		assert.ErrorIs(t, err, models.ErrInvalidDocument)
	}
}

func TestExtractAndStoreSaveFailure(t *testing.T) {
	f := newExtractorFixture(t)
	f.chains.saveErr = errBoom

	_, err := f.ext.ExtractAndStore(context.Background(), &models.Document{ID: "d1", Body: "chain text"})
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "save chain")
	assert.Empty(t, f.pub.chains)
	assert.Equal(t, 1, f.metrics.errorCount("save_chain"))
}

func TestExtractAndStorePublishFailureKeepsChain(t *testing.T) {
	f := newExtractorFixture(t)
	f.pub.err = errBoom

	out, err := f.ext.ExtractAndStore(context.Background(), &models.Document{ID: "d1", Body: "chain text"})
	require.NoError(t, err)
	assert.NotNil(t, out.Chain)
	assert.Equal(t, 1, f.chains.count())
	assert.Equal(t, 1, f.metrics.errorCount("publish_chain"))
}

func TestExtractBatchBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newExtractorFixture(t, WithBatchConcurrency(2))
	defer f.cache.Close()
	f.engine.delay = 5 * time.Millisecond

	var docs []*models.Document
	for i := 0; i < 10; i++ {
		body := "chain text"
		if i%2 == 1 {
			body = "nothing here"
		}
		docs = append(docs, &models.Document{ID: fmt.Sprintf("d%d", i), Body: body})
	}
	docs = append(docs, &models.Document{ID: "", Body: "chain"})

	stats, err := f.ext.ExtractBatch(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, BatchStats{Processed: 11, Stored: 5, Negative: 5, Failed: 1}, stats)
	assert.LessOrEqual(t, f.engine.maxSeen.Load(), int32(2))
	assert.Equal(t, 5, f.chains.count())
}

func TestExtractBatchStopsOnCancel(t *testing.T) {
	f := newExtractorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := f.ext.ExtractBatch(ctx, []*models.Document{{ID: "d1", Body: "chain"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Stored)
}

func TestBackfillReprocessesRecentDocuments(t *testing.T) {
	ctx := context.Background()
	f := newExtractorFixture(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.docs.Save(ctx, &models.Document{ID: "old", Body: "chain text", PublishedAt: base.Add(-time.Hour)}))
	require.NoError(t, f.docs.Save(ctx, &models.Document{ID: "new1", Body: "chain text", PublishedAt: base}))
	require.NoError(t, f.docs.Save(ctx, &models.Document{ID: "new2", Body: "nothing here", PublishedAt: base.Add(time.Hour)}))

	stats, err := f.ext.Backfill(ctx, base, 10)
	require.NoError(t, err)
	assert.Equal(t, BatchStats{Processed: 2, Stored: 1, Negative: 1}, stats)
	assert.Equal(t, 1, f.chains.count())
}
