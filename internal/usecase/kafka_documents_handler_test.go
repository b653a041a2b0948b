package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"MacroChain/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaDocumentsHandler(t *testing.T) {
	ctx := context.Background()
	f := newExtractorFixture(t)
	h := NewKafkaDocumentsHandler("macrochain.documents", f.ext, f.metrics)
	assert.Equal(t, "macrochain.documents", h.Topic())

	require.NoError(t, h.Handle(ctx, []byte(`{"id":"d1","title":"T","body":"chain text","date":"2024-03-01","source":"rss"}`)))
	d, err := f.docs.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d.PublishedAt)
	assert.Equal(t, 1, f.chains.count())

	assert.Error(t, h.Handle(ctx, []byte(`{not json`)))
	assert.ErrorIs(t, h.Handle(ctx, []byte(`{"id":"d2"}`)), models.ErrInvalidDocument)

	ok, err := f.cache.TryLock(ctx, lockKey("d3"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, h.Handle(ctx, []byte(`{"id":"d3","body":"chain text"}`)), "in-flight documents are acknowledged")
}

func TestExtractDocumentJob(t *testing.T) {
	ctx := context.Background()
	f := newExtractorFixture(t)
	require.NoError(t, f.docs.Save(ctx, &models.Document{ID: "d1", Body: "chain text"}))
	job := NewExtractDocumentJob(f.docs, f.ext)

	require.NoError(t, job.Handle(ctx, json.RawMessage(`{"document_id":"d1"}`)))
	assert.Equal(t, 1, f.chains.count())

	err := job.Handle(ctx, json.RawMessage(`{"document_id":"missing"}`))
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	assert.ErrorIs(t, job.Handle(ctx, json.RawMessage(`{}`)), models.ErrInvalidDocument)
	assert.Error(t, job.Handle(ctx, json.RawMessage(`42`)))
}
