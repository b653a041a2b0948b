package repository

import (
	"context"
	"fmt"

	drepo "MacroChain/internal/domain/repository"
	"MacroChain/pkg/queue"
)

// QueueEnqueuer schedules background jobs on a queue service.
type QueueEnqueuer struct {
	q queue.QueueService
}

func NewQueueEnqueuer(q queue.QueueService) *QueueEnqueuer {
	return &QueueEnqueuer{q: q}
}

func (e *QueueEnqueuer) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	if err := e.q.PublishMessage(ctx, msgType, payload); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

var _ drepo.Enqueuer = (*QueueEnqueuer)(nil)
