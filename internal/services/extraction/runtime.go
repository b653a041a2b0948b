package extraction

import (
	"sync/atomic"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/service"
	"MacroChain/internal/services/patterns"
)

// Snapshotter exposes the current instrument registry snapshot.
type Snapshotter interface {
	Snapshot() *models.InstrumentSet
}

type builtEngine struct {
	lib    *patterns.Library
	set    *models.InstrumentSet
	engine *Engine
}

// Runtime binds the engine to the live pattern library and instrument
// registry. Each Extract call uses the snapshots current at its start; the
// compiled engine is rebuilt only when either snapshot changes.
type Runtime struct {
	patterns *patterns.Holder
	registry Snapshotter
	opts     []Option
	cur      atomic.Pointer[builtEngine]
}

func NewRuntime(h *patterns.Holder, reg Snapshotter, opts ...Option) *Runtime {
	return &Runtime{patterns: h, registry: reg, opts: opts}
}

func (r *Runtime) engine() *Engine {
	lib, set := r.patterns.Current(), r.registry.Snapshot()
	if b := r.cur.Load(); b != nil && b.lib == lib && b.set == set {
		return b.engine
	}
	b := &builtEngine{lib: lib, set: set, engine: New(lib, set, r.opts...)}
	r.cur.Store(b)
	return b.engine
}

func (r *Runtime) Extract(doc *models.Document) service.Outcome {
	return r.engine().Extract(doc)
}

var _ service.Extractor = (*Runtime)(nil)
