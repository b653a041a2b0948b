package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"MacroChain/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDocPublisher struct {
	mu      sync.Mutex
	single  []string
	batches [][]string
}

func (p *recordingDocPublisher) Publish(_ context.Context, d *models.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.single = append(p.single, d.ID)
	return nil
}

func (p *recordingDocPublisher) PublishBatch(_ context.Context, docs []*models.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	p.batches = append(p.batches, ids)
	return nil
}

func (p *recordingDocPublisher) Close() error { return nil }

func TestProcessBatchKafkaRoutePublishesOnce(t *testing.T) {
	pub := &recordingDocPublisher{}
	m := newFakeMetrics()
	p := NewDocumentProcessor(pub, nil, m, RouteKafka)

	docs := []*models.Document{{ID: "d1", Body: "x"}, {ID: "d2", Body: "y"}}
	require.NoError(t, p.ProcessBatch(context.Background(), docs))

	assert.Equal(t, [][]string{{"d1", "d2"}}, pub.batches)
	assert.Empty(t, pub.single)
	assert.Equal(t, 2, m.sent)
}

func TestProcessBatchDirectRouteExtracts(t *testing.T) {
	f := newExtractorFixture(t)
	p := NewDocumentProcessor(nil, f.ext, f.metrics, RouteDirect)

	docs := []*models.Document{{ID: "d1", Body: "chain one"}, {ID: "d2", Body: "chain two"}}
	require.NoError(t, p.ProcessBatch(context.Background(), docs))
	assert.Equal(t, 2, f.chains.count())

	f.chains.saveErr = errors.New("disk full")
	err := p.ProcessBatch(context.Background(), []*models.Document{{ID: "d3", Body: "chain three"}})
	require.Error(t, err)
	assert.Equal(t, 1, f.metrics.errorCount("process_batch"))
}

func TestProcessBatchRejectsUnknownRoute(t *testing.T) {
	m := newFakeMetrics()
	p := NewDocumentProcessor(nil, nil, m, "carrier-pigeon")

	require.NoError(t, p.ProcessBatch(context.Background(), nil))
	assert.Error(t, p.ProcessBatch(context.Background(), []*models.Document{{ID: "d1", Body: "x"}}))
	assert.Error(t, p.Process(context.Background(), &models.Document{ID: "d1", Body: "x"}))
}
