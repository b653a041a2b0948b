package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	extractions  *prometheus.CounterVec
	correlations prometheus.Histogram
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macrochain_messages_sent_total",
				Help: "Total number of documents forwarded to a backend",
			},
			[]string{"backend", "source"},
		),
		extractions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macrochain_extractions_total",
				Help: "Extraction runs by result (chain, no_event, insufficient_steps, low_quality)",
			},
			[]string{"result"},
		),
		correlations: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "macrochain_chain_correlations",
				Help:    "Number of instrument correlations per stored chain",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macrochain_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macrochain_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordMessageSent records a document sent to a backend.
func (r *Recorder) RecordMessageSent(backend, source string) {
	r.messagesSent.WithLabelValues(backend, source).Inc()
}

// RecordExtraction counts one extraction run by its result.
func (r *Recorder) RecordExtraction(result string) {
	r.extractions.WithLabelValues(result).Inc()
}

// RecordCorrelations observes the correlation count of a stored chain.
func (r *Recorder) RecordCorrelations(n int) {
	r.correlations.Observe(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
