package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordExtraction("chain")
	r.RecordExtraction("chain")
	r.RecordExtraction("no_event")
	r.RecordError("store")
	r.RecordMessageSent("kafka", "rss")
	r.RecordCorrelations(2)

	assert.Equal(t, 2.0, counterValue(t, reg, "macrochain_extractions_total", map[string]string{"result": "chain"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "macrochain_extractions_total", map[string]string{"result": "no_event"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "macrochain_errors_total", map[string]string{"type": "store"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "macrochain_messages_sent_total", map[string]string{"backend": "kafka", "source": "rss"}))
}

func TestRecordersUseSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}
