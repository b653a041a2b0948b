package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerConfigValidation(t *testing.T) {
	_, err := NewProducer()
	assert.ErrorContains(t, err, "brokers")

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("brotli"))
	assert.ErrorContains(t, err, "compression")

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithRequiredAcks(2))
	assert.ErrorContains(t, err, "acks")

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("zstd"), WithHashByKey(true), WithBatchSize(0))
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, kafka.Zstd, p.writer.Compression)
	assert.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	assert.Equal(t, 100, p.writer.BatchSize)
}

func TestNewMessageEncodesValueAndTrace(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")

	msg, err := newMessage(ctx, "macrochain.chains", []byte("doc-1"), map[string]string{"title": "Tariffs"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Tariffs"}`, string(msg.Value))
	assert.Equal(t, []kafka.Header{{Key: "trace_id", Value: []byte("trace-1")}}, msg.Headers)

	msg, err = newMessage(context.Background(), "t", nil, "raw text")
	require.NoError(t, err)
	assert.Equal(t, "raw text", string(msg.Value))
	assert.Empty(t, msg.Headers)

	_, err = newMessage(context.Background(), "t", nil, func() {})
	assert.Error(t, err)
}
