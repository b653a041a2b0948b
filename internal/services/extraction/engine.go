package extraction

import (
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/service"
	"MacroChain/internal/services/patterns"
)

// Options holds the tunable thresholds of the pipeline.
type Options struct {
	QualityThreshold float64
	MinRelevance     float64
	MaxPerRole       int
	MaxCandidates    int
	MinStepLength    int
	MaxStepLength    int
	Now              func() time.Time
}

// Option configures an Engine.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		QualityThreshold: 0.6,
		MinRelevance:     0.3,
		MaxPerRole:       2,
		MaxCandidates:    5,
		MinStepLength:    20,
		MaxStepLength:    200,
		Now:              time.Now,
	}
}

// WithQualityThreshold sets the minimum validator score for a chain.
func WithQualityThreshold(v float64) Option {
	return func(o *Options) {
		if v > 0 {
			o.QualityThreshold = v
		}
	}
}

// WithMinRelevance sets the correlation drop threshold.
func WithMinRelevance(v float64) Option {
	return func(o *Options) {
		if v > 0 {
			o.MinRelevance = v
		}
	}
}

// WithCandidateLimits sets the per-role and total candidate caps.
func WithCandidateLimits(perRole, total int) Option {
	return func(o *Options) {
		if perRole > 0 {
			o.MaxPerRole = perRole
		}
		if total > 0 {
			o.MaxCandidates = total
		}
	}
}

// WithStepLength sets the accepted clause length bounds in runes.
func WithStepLength(min, max int) Option {
	return func(o *Options) {
		if min >= 0 {
			o.MinStepLength = min
		}
		if max > 0 {
			o.MaxStepLength = max
		}
	}
}

// WithClock overrides the chain timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

// Engine runs the extraction stages over one document at a time.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	lib         *patterns.Library
	instruments []trackedInstrument
	opts        Options
}

func New(lib *patterns.Library, set *models.InstrumentSet, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		lib:         lib,
		instruments: trackInstruments(lib, set),
		opts:        o,
	}
}

// Extract detects events, builds and validates the step sequence, correlates
// instruments and assembles the chain. Negative results carry a Reason.
func (e *Engine) Extract(doc *models.Document) service.Outcome {
	events := DetectEvents(e.lib, doc)
	if len(events) == 0 {
		return service.Outcome{Reason: service.ReasonNoEvent}
	}

	text := doc.Text()
	steps := AnalyzeStructure(e.lib, text, e.opts)
	if len(steps) < 2 {
		return service.Outcome{Events: events, Reason: service.ReasonInsufficientSteps}
	}

	quality := QualityScore(e.lib, steps)
	if quality < e.opts.QualityThreshold {
		return service.Outcome{Events: events, QualityScore: quality, Reason: service.ReasonLowQuality}
	}

	corrs := Correlate(e.lib, steps, text, e.instruments, e.opts.MinRelevance)
	chain := Assemble(e.lib, doc, events, steps, corrs, quality, e.opts.Now())
	return service.Outcome{Chain: chain, Events: events, QualityScore: quality}
}
