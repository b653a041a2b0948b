package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"MacroChain/internal/domain/models"
	domrepo "MacroChain/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, d *models.Document) error
}

// BatchProc is implemented by processors that can take the retry backlog
// in one call.
type BatchProc interface {
	ProcessBatch(ctx context.Context, docs []*models.Document) error
}

// DocumentPipeline sits between a document stream and the processor.
// It validates, drops ids seen within the dedup window, throttles per source,
// and buffers documents when downstream is unavailable.
type DocumentPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	throttle time.Duration
	window   time.Duration
	bufSize  int
	bufCh    chan *models.Document
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopped  bool
	stopOnce sync.Once
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-source last accepted time
	seen     map[string]time.Time // document id -> accepted at
	swept    time.Time
	now      func() time.Time
}

type PipelineOption func(*DocumentPipeline)

// WithThrottle sets the minimum gap between two documents of one source.
func WithThrottle(d time.Duration) PipelineOption {
	return func(p *DocumentPipeline) {
		if d >= 0 {
			p.throttle = d
		}
	}
}

// WithDedupWindow sets how long an accepted document id is remembered.
func WithDedupWindow(d time.Duration) PipelineOption {
	return func(p *DocumentPipeline) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *DocumentPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func withClock(now func() time.Time) PipelineOption {
	return func(p *DocumentPipeline) { p.now = now }
}

// NewDocumentPipeline creates a new pipeline.
func NewDocumentPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *DocumentPipeline {
	p := &DocumentPipeline{
		proc:     proc,
		metrics:  metrics,
		throttle: 0,
		window:   time.Hour,
		bufSize:  256,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		seen:     make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Document, p.bufSize)
	return p
}

// Start launches background flushing of buffered documents.
// A stopped pipeline cannot be restarted.
func (p *DocumentPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case d := <-p.bufCh:
				failed := p.flush(ctx, p.drain(d))
				if len(failed) == 0 {
					backoff = 50 * time.Millisecond
					continue
				}
				// exponential backoff with cap
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_flush")
				select {
				case <-time.After(backoff):
				case <-p.stopCh:
					return
				case <-ctx.Done():
					return
				}
				// requeue if space; drop otherwise
				for _, d := range failed {
					select {
					case p.bufCh <- d:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				}
			}
		}
	}()
}

// Stop stops the background flushing and waits for it to exit. It is safe
// to call more than once.
func (p *DocumentPipeline) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		running := p.started
		p.mu.Unlock()

		close(p.stopCh)
		if running {
			<-p.doneCh
		}
	})
}

// drain collects first plus whatever else is already buffered.
func (p *DocumentPipeline) drain(first *models.Document) []*models.Document {
	batch := []*models.Document{first}
	for len(batch) < p.bufSize {
		select {
		case d := <-p.bufCh:
			batch = append(batch, d)
		default:
			return batch
		}
	}
	return batch
}

// flush hands a backlog downstream and returns the documents to retry.
func (p *DocumentPipeline) flush(ctx context.Context, batch []*models.Document) []*models.Document {
	if bp, ok := p.proc.(BatchProc); ok && len(batch) > 1 {
		if err := bp.ProcessBatch(ctx, batch); err != nil {
			return batch
		}
		return nil
	}

	var failed []*models.Document
	for _, d := range batch {
		if err := p.proc.Process(ctx, d); err != nil {
			failed = append(failed, d)
		}
	}
	return failed
}

// Buffered returns the number of documents waiting for a retry.
func (p *DocumentPipeline) Buffered() int { return len(p.bufCh) }

// Process validates, dedups, throttles, and forwards a document, buffering on errors.
func (p *DocumentPipeline) Process(ctx context.Context, d *models.Document) error {
	start := p.now()
	if err := validateDocument(d); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.admit(d, start) {
		return nil
	}

	if err := p.proc.Process(ctx, d); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- d:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateDocument(d *models.Document) error {
	if d == nil {
		return fmt.Errorf("document nil: %w", models.ErrInvalidDocument)
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("document id empty: %w", models.ErrInvalidDocument)
	}
	if strings.TrimSpace(d.Text()) == "" {
		return fmt.Errorf("document %s has no text: %w", d.ID, models.ErrInvalidDocument)
	}
	return nil
}

// admit applies the dedup window and the per-source throttle.
func (p *DocumentPipeline) admit(d *models.Document, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	// expired ids are swept at most twice per window
	if now.Sub(p.swept) >= p.window/2 {
		for id, at := range p.seen {
			if now.Sub(at) >= p.window {
				delete(p.seen, id)
			}
		}
		p.swept = now
	}
	if at, dup := p.seen[d.ID]; dup && now.Sub(at) < p.window {
		p.metrics.RecordError("pipeline_duplicate")
		return false
	}

	if p.throttle > 0 {
		if last, ok := p.lastSeen[d.Source]; ok && now.Sub(last) < p.throttle {
			p.metrics.RecordError("pipeline_throttle")
			return false
		}
		p.lastSeen[d.Source] = now
	}
	p.seen[d.ID] = now
	return true
}
