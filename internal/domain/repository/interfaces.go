package repository

import (
	"context"
	"time"

	"MacroChain/internal/domain/models"
)

// DocumentStream is a live source of documents (news websocket, feed poller).
type DocumentStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Document, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// DocumentPublisher forwards raw documents to the ingestion topic.
type DocumentPublisher interface {
	Publish(ctx context.Context, d *models.Document) error
	PublishBatch(ctx context.Context, docs []*models.Document) error
	Close() error
}

// DocumentStore is the collaborator store chains reference.
type DocumentStore interface {
	Save(ctx context.Context, d *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]*models.Document, error)
	Delete(ctx context.Context, id string) error
}

// ListFilter narrows ChainStore.List.
type ListFilter struct {
	SourceDocumentID string
	Limit            int
}

// ChainStore persists chains atomically and reads them deduplicated.
type ChainStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, c *models.CausalChain) error
	List(ctx context.Context, f ListFilter) ([]models.CausalChain, error)
	Health(ctx context.Context) error
	Close() error
}

// ChainPublisher announces stored chains to downstream consumers.
type ChainPublisher interface {
	PublishChain(ctx context.Context, c *models.CausalChain, events []models.MacroEvent) error
}

// InstrumentSource loads the tracked-instrument registry.
type InstrumentSource interface {
	Load(ctx context.Context) ([]models.Instrument, error)
}

// Locker guards per-document extraction.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

type Metrics interface {
	RecordMessageSent(backend, source string)
	RecordExtraction(result string)
	RecordCorrelations(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
