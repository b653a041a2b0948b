package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"MacroChain/internal/domain/models"
	drepo "MacroChain/internal/domain/repository"
	"MacroChain/internal/domain/service"
	pkgcache "MacroChain/pkg/cache"
	applogger "MacroChain/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ExtractionStored is the extraction result label of a persisted chain.
const ExtractionStored = "stored"

// ChainExtractor runs the engine over a document and persists the result.
// Writes for one document are serialized through the Locker.
type ChainExtractor struct {
	extractor   service.Extractor
	docs        drepo.DocumentStore
	chains      drepo.ChainStore
	metrics     drepo.Metrics
	pub         drepo.ChainPublisher
	locker      drepo.Locker
	listCache   pkgcache.Service
	lockTTL     time.Duration
	concurrency int
	l           *applogger.Logger
}

type ExtractorOption func(*ChainExtractor)

// WithChainPublisher announces every stored chain.
func WithChainPublisher(p drepo.ChainPublisher) ExtractorOption {
	return func(e *ChainExtractor) { e.pub = p }
}

// WithLocker sets the per-document lock.
func WithLocker(l drepo.Locker, ttl time.Duration) ExtractorOption {
	return func(e *ChainExtractor) {
		e.locker = l
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithListCache invalidates cached chain listings after each write.
func WithListCache(c pkgcache.Service) ExtractorOption {
	return func(e *ChainExtractor) { e.listCache = c }
}

// WithBatchConcurrency bounds ExtractBatch.
func WithBatchConcurrency(n int) ExtractorOption {
	return func(e *ChainExtractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithExtractorLogger(l *applogger.Logger) ExtractorOption {
	return func(e *ChainExtractor) {
		if l != nil {
			e.l = l
		}
	}
}

func NewChainExtractor(
	extractor service.Extractor,
	docs drepo.DocumentStore,
	chains drepo.ChainStore,
	metrics drepo.Metrics,
	opts ...ExtractorOption,
) *ChainExtractor {
	e := &ChainExtractor{
		extractor:   extractor,
		docs:        docs,
		chains:      chains,
		metrics:     metrics,
		lockTTL:     2 * time.Minute,
		concurrency: 4,
		l:           applogger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractAndStore saves the document, extracts a chain from it and stores the
// chain. Negative outcomes are returned with a nil error.
func (e *ChainExtractor) ExtractAndStore(ctx context.Context, doc *models.Document) (service.Outcome, error) {
	if doc == nil || strings.TrimSpace(doc.ID) == "" || strings.TrimSpace(doc.Text()) == "" {
		return service.Outcome{}, models.ErrInvalidDocument
	}
	start := time.Now()

	if e.locker != nil {
		key := lockKey(doc.ID)
		ok, err := e.locker.TryLock(ctx, key, e.lockTTL)
		if err != nil {
			e.metrics.RecordError("lock")
			return service.Outcome{}, fmt.Errorf("lock document %s: %w", doc.ID, err)
		}
		if !ok {
			return service.Outcome{}, models.ErrExtractionInFlight
		}
		defer func() {
			if err := e.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				e.l.Warn("unlock document failed", applogger.String("document_id", doc.ID), applogger.Error(err))
			}
		}()
	}

	if err := e.docs.Save(ctx, doc); err != nil {
		e.metrics.RecordError("save_document")
		return service.Outcome{}, fmt.Errorf("save document: %w", err)
	}

	out := e.extractor.Extract(doc)
	if out.Chain == nil {
		e.metrics.RecordExtraction(string(out.Reason))
		e.l.Debug("no chain extracted",
			applogger.String("document_id", doc.ID),
			applogger.String("reason", string(out.Reason)),
			applogger.Float64("quality", out.QualityScore))
		return out, nil
	}

	if err := e.chains.Save(ctx, out.Chain); err != nil {
		e.metrics.RecordError("save_chain")
		return service.Outcome{}, fmt.Errorf("save chain: %w", err)
	}
	e.metrics.RecordExtraction(ExtractionStored)
	e.metrics.RecordCorrelations(len(out.Chain.Correlations))

	if e.listCache != nil {
		if err := invalidateListings(ctx, e.listCache); err != nil {
			e.l.Warn("invalidate chain list cache failed", applogger.Error(err))
		}
	}
	if e.pub != nil {
		// the chain is durable at this point; announcement is best effort
		if err := e.pub.PublishChain(ctx, out.Chain, out.Events); err != nil {
			e.metrics.RecordError("publish_chain")
			e.l.Error("publish chain failed", applogger.String("chain_id", out.Chain.ID), applogger.Error(err))
		}
	}

	e.metrics.RecordLatency("extract_and_store", time.Since(start).Seconds())
	e.l.Info("chain stored",
		applogger.String("document_id", doc.ID),
		applogger.String("chain_id", out.Chain.ID),
		applogger.Int("steps", len(out.Chain.Steps)),
		applogger.Int("correlations", len(out.Chain.Correlations)))
	return out, nil
}

// BatchStats summarizes an ExtractBatch run.
type BatchStats struct {
	Processed int64 `json:"processed"`
	Stored    int64 `json:"stored"`
	Negative  int64 `json:"negative"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// ExtractBatch runs ExtractAndStore over docs with bounded concurrency.
// Per-document failures are counted, not returned; only cancellation aborts.
func (e *ChainExtractor) ExtractBatch(ctx context.Context, docs []*models.Document) (BatchStats, error) {
	var processed, stored, negative, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, d := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := e.ExtractAndStore(gctx, d)
			processed.Add(1)
			switch {
			case errors.Is(err, models.ErrExtractionInFlight):
				skipped.Add(1)
			case err != nil:
				failed.Add(1)
				id := ""
				if d != nil {
					id = d.ID
				}
				e.l.Error("batch extraction failed", applogger.String("document_id", id), applogger.Error(err))
			case out.Chain != nil:
				stored.Add(1)
			default:
				negative.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats := BatchStats{
		Processed: processed.Load(),
		Stored:    stored.Load(),
		Negative:  negative.Load(),
		Skipped:   skipped.Load(),
		Failed:    failed.Load(),
	}
	if err != nil {
		return stats, fmt.Errorf("extract batch: %w", err)
	}
	return stats, nil
}

// Backfill re-runs extraction over stored documents published at or after since.
func (e *ChainExtractor) Backfill(ctx context.Context, since time.Time, limit int) (BatchStats, error) {
	docs, err := e.docs.ListSince(ctx, since, limit)
	if err != nil {
		return BatchStats{}, fmt.Errorf("backfill: %w", err)
	}
	e.l.Info("backfill: starting", applogger.Int("documents", len(docs)), applogger.String("since", since.Format(time.RFC3339)))
	return e.ExtractBatch(ctx, docs)
}

func lockKey(documentID string) string {
	return pkgcache.GenerateKey("lock:extract", documentID)
}
