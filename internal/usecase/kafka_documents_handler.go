package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MacroChain/internal/domain/models"
	domrepo "MacroChain/internal/domain/repository"
	pkgkafka "MacroChain/pkg/kafka"
	"MacroChain/pkg/util"
)

// DocumentMessage is the wire form of a document on the documents topic.
type DocumentMessage struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Date   string `json:"date"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// Document converts the message, defaulting the publish date to now.
func (m DocumentMessage) Document(now time.Time) *models.Document {
	return &models.Document{
		ID:          m.ID,
		Title:       m.Title,
		Body:        m.Body,
		Source:      m.Source,
		URL:         m.URL,
		PublishedAt: util.ParseTimeDefault(m.Date, now).UTC(),
	}
}

// KafkaDocumentsHandler consumes documents and runs extract+store on each.
type KafkaDocumentsHandler struct {
	topic     string
	extractor *ChainExtractor
	metrics   domrepo.Metrics
	now       func() time.Time
}

func NewKafkaDocumentsHandler(topic string, extractor *ChainExtractor, metrics domrepo.Metrics) *KafkaDocumentsHandler {
	return &KafkaDocumentsHandler{topic: topic, extractor: extractor, metrics: metrics, now: time.Now}
}

func (h *KafkaDocumentsHandler) Topic() string { return h.topic }

// Handle returns an error only for messages worth retrying or dead-lettering.
// A document already being extracted elsewhere is acknowledged.
func (h *KafkaDocumentsHandler) Handle(ctx context.Context, b []byte) error {
	var m DocumentMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode document: %w", err)
	}
	doc := m.Document(h.now())
	if !doc.PublishedAt.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(doc.PublishedAt).Seconds())
	}

	_, err := h.extractor.ExtractAndStore(ctx, doc)
	switch {
	case errors.Is(err, models.ErrExtractionInFlight):
		return nil
	case err != nil:
		h.metrics.RecordError("consumer_extract")
		return err
	}
	h.metrics.RecordMessageSent("consumer", doc.Source)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaDocumentsHandler)(nil)
