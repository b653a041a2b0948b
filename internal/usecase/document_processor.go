package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MacroChain/internal/domain/models"
	drepo "MacroChain/internal/domain/repository"
)

const (
	RouteKafka  = "kafka"
	RouteDirect = "direct"
)

// DocumentProcessor routes collected documents either to the documents topic
// or straight into extraction.
type DocumentProcessor struct {
	pub       drepo.DocumentPublisher
	extractor *ChainExtractor
	metrics   drepo.Metrics
	route     string
}

func NewDocumentProcessor(
	pub drepo.DocumentPublisher,
	extractor *ChainExtractor,
	metrics drepo.Metrics,
	route string,
) *DocumentProcessor {
	return &DocumentProcessor{pub: pub, extractor: extractor, metrics: metrics, route: route}
}

// Process routes a single document to the configured backend.
func (p *DocumentProcessor) Process(ctx context.Context, d *models.Document) error {
	if d == nil {
		return fmt.Errorf("document is nil")
	}

	start := time.Now()
	var err error

	switch p.route {
	case RouteKafka:
		if p.pub == nil {
			err = fmt.Errorf("no document publisher configured")
			break
		}
		err = p.pub.Publish(ctx, d)
	case RouteDirect:
		_, err = p.extractor.ExtractAndStore(ctx, d)
		if errors.Is(err, models.ErrExtractionInFlight) {
			err = nil
		}
	default:
		err = fmt.Errorf("unknown route: %s", p.route)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process document: %w", err)
	}

	p.metrics.RecordMessageSent(p.route, d.Source)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch processes multiple documents in a batch.
func (p *DocumentProcessor) ProcessBatch(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.route {
	case RouteKafka:
		if p.pub == nil {
			err = fmt.Errorf("no document publisher configured")
			break
		}
		err = p.pub.PublishBatch(ctx, docs)
	case RouteDirect:
		var stats BatchStats
		stats, err = p.extractor.ExtractBatch(ctx, docs)
		if err == nil && stats.Failed > 0 {
			err = fmt.Errorf("%d of %d documents failed", stats.Failed, stats.Processed)
		}
	default:
		err = fmt.Errorf("unknown route: %s", p.route)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, d := range docs {
		p.metrics.RecordMessageSent(p.route, d.Source)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *DocumentProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
