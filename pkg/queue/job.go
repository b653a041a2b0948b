package queue

import (
	"context"
	"encoding/json"
)

// Job handles one message type. Handle receives the payload exactly as it
// was enqueued, JSON-encoded; use Decode to read it.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}
