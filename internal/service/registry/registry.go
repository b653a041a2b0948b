package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/repository"
	"MacroChain/pkg/logger"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Registry holds the tracked-instrument snapshot used for correlation.
// Readers get an immutable *InstrumentSet; Reload swaps it atomically.
type Registry struct {
	source  repository.InstrumentSource
	cur     atomic.Pointer[models.InstrumentSet]
	reloads atomic.Int64
	log     *logger.Logger
	now     func() time.Time
}

func New(source repository.InstrumentSource) *Registry {
	r := &Registry{source: source, log: logger.Nop(), now: time.Now}
	r.cur.Store(&models.InstrumentSet{})
	return r
}

func (r *Registry) SetLogger(l *logger.Logger) {
	if l != nil {
		r.log = l
	}
}

// Snapshot returns the current instrument set. It is never nil.
func (r *Registry) Snapshot() *models.InstrumentSet { return r.cur.Load() }

// Reload fetches instruments from the source. Invalid entries are skipped,
// duplicate symbols keep their first occurrence and the result is sorted by
// symbol. On error the previous snapshot stays active.
func (r *Registry) Reload(ctx context.Context) (*models.InstrumentSet, error) {
	raw, err := r.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load instruments: %w", err)
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]models.Instrument, 0, len(raw))
	for _, inst := range raw {
		inst.Symbol = strings.TrimSpace(inst.Symbol)
		if err := validate.Struct(inst); err != nil {
			r.log.Warn("registry: skipping invalid instrument", logger.String("symbol", inst.Symbol), logger.Error(err))
			continue
		}
		if _, dup := seen[inst.Symbol]; dup {
			continue
		}
		seen[inst.Symbol] = struct{}{}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	set := &models.InstrumentSet{
		Instruments: out,
		Version:     fmt.Sprintf("r%d", r.reloads.Add(1)),
		LoadedAt:    r.now().UTC(),
	}
	r.cur.Store(set)
	r.log.Info("registry: reloaded", logger.Int("instruments", len(out)), logger.String("version", set.Version))
	return set, nil
}

// Run reloads every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reload(ctx); err != nil {
				r.log.Error("registry: periodic reload failed", logger.Error(err))
			}
		}
	}
}
