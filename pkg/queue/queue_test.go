package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extractPayload struct {
	DocumentID string `json:"document_id"`
}

func TestDecode(t *testing.T) {
	got, err := Decode[extractPayload](json.RawMessage(`{"document_id":"doc-1"}`))
	require.NoError(t, err)
	assert.Equal(t, &extractPayload{DocumentID: "doc-1"}, got)

	_, err = Decode[extractPayload](json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestNewMessageRoundTripsPayload(t *testing.T) {
	data, err := newMessage("extract.document", extractPayload{DocumentID: "doc-1"})
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "extract.document", msg.Type)
	assert.NotEmpty(t, msg.ID)
	assert.Zero(t, msg.Attempts)
	assert.JSONEq(t, `{"document_id":"doc-1"}`, string(msg.Payload))

	p, err := Decode[extractPayload](msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", p.DocumentID)

	_, err = newMessage("x", make(chan int))
	assert.Error(t, err)
}

func TestConfigDefaultsAndBackoff(t *testing.T) {
	cfg := (*QueueConfig)(nil).withDefaults()
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.RetryDelay)
	assert.Equal(t, 100*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, time.Second, cfg.PollTimeout)

	cfg = (&QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second}).withDefaults()
	assert.Equal(t, time.Second, cfg.backoff(1))
	assert.Equal(t, 2*time.Second, cfg.backoff(2))
	assert.Equal(t, 4*time.Second, cfg.backoff(3))
	assert.Equal(t, 5*time.Second, cfg.backoff(4))
	assert.Equal(t, 5*time.Second, cfg.backoff(10))
}

func TestQueueKeysUsePrefix(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil, WithKeyPrefix("macrochain:queue:extract"))
	assert.Equal(t, "macrochain:queue:extract:messages", q.getQueueKey())
	assert.Equal(t, "macrochain:queue:extract:retry", q.getRetryKey())
	assert.Equal(t, "macrochain:queue:extract:dlq", q.getDeadLetterKey())
}
