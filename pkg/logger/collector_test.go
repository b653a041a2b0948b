package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	digests [][]AggregatedLogEntry
	err     error
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.digests = append(p.digests, payload.([]AggregatedLogEntry))
	return p.err
}

func (p *capturePublisher) published() [][]AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]AggregatedLogEntry(nil), p.digests...)
}

func TestLogCollectorFoldsRepeatsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "macrochain.logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "publish chain failed", map[string]interface{}{"chain_id": "c1"}, "usecase/chain_extractor.go:10")
	}
	c.AddLog("error", "publish chain failed", map[string]interface{}{"chain_id": "c2"}, "usecase/chain_extractor.go:10")
	c.Close()
	c.Close()

	got := pub.published()
	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	assert.Equal(t, 3, got[0][0].Count)
	assert.Equal(t, "c1", got[0][0].Fields["chain_id"])
	assert.Equal(t, 1, got[0][1].Count)
	assert.Equal(t, []string{"macrochain.logs"}, pub.topics)

	c.AddLog("error", "late", nil, "x.go:1")
	assert.Len(t, pub.published(), 1)
}

func TestLogCollectorFlushesAtThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)

	var reported []error
	var mu sync.Mutex
	pub := &capturePublisher{err: errors.New("broker down")}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Publisher:      pub,
		OnError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, err)
		},
	})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, pub.published()[0], 2)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEntryKeyIgnoresFieldOrder(t *testing.T) {
	a := entryKey("error", "m", map[string]interface{}{"x": 1, "y": "z"}, "f.go:1")
	b := entryKey("error", "m", map[string]interface{}{"y": "z", "x": 1}, "f.go:1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, entryKey("warn", "m", map[string]interface{}{"x": 1, "y": "z"}, "f.go:1"))
}
