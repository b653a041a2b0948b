package repository

import (
	"context"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/repository"
	pkgkafka "MacroChain/pkg/kafka"
)

// KafkaDocumentPublisher forwards documents to the ingestion topic keyed by id.
type KafkaDocumentPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaDocumentPublisher(producer *pkgkafka.Producer, topic string) *KafkaDocumentPublisher {
	return &KafkaDocumentPublisher{producer: producer, topic: topic}
}

func (p *KafkaDocumentPublisher) Publish(ctx context.Context, d *models.Document) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.ID), d)
}

func (p *KafkaDocumentPublisher) PublishBatch(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(d.ID), Value: d})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared and closed by its owner.
func (p *KafkaDocumentPublisher) Close() error { return nil }

// ChainMessage is the payload announced for every stored chain.
type ChainMessage struct {
	Chain       *models.CausalChain `json:"chain"`
	Events      []models.MacroEvent `json:"events"`
	PublishedAt time.Time           `json:"published_at"`
}

// KafkaChainPublisher announces stored chains keyed by source document.
type KafkaChainPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	now      func() time.Time
}

func NewKafkaChainPublisher(producer *pkgkafka.Producer, topic string) *KafkaChainPublisher {
	return &KafkaChainPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaChainPublisher) PublishChain(ctx context.Context, c *models.CausalChain, events []models.MacroEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(c.SourceDocumentID), ChainMessage{
		Chain:       c,
		Events:      events,
		PublishedAt: p.now().UTC(),
	})
}

var (
	_ repository.DocumentPublisher = (*KafkaDocumentPublisher)(nil)
	_ repository.ChainPublisher    = (*KafkaChainPublisher)(nil)
)
