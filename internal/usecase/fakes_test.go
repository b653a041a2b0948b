package usecase

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"MacroChain/internal/domain/models"
	drepo "MacroChain/internal/domain/repository"
	"MacroChain/internal/domain/service"
)

type fakeMetrics struct {
	mu          sync.Mutex
	extractions map[string]int
	errors      map[string]int
	sent        int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{extractions: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordMessageSent(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

func (m *fakeMetrics) RecordExtraction(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractions[result]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordCorrelations(int)        {}
func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) extraction(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extractions[result]
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// stubExtractor yields a one-correlation chain for documents whose body
// starts with "chain", a no_event outcome otherwise.
type stubExtractor struct {
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (s *stubExtractor) Extract(doc *models.Document) service.Outcome {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if len(doc.Body) < 5 || doc.Body[:5] != "chain" {
		return service.Outcome{Reason: service.ReasonNoEvent}
	}
	return service.Outcome{
		Chain: &models.CausalChain{
			Title:            "Chain of " + doc.ID,
			SourceDocumentID: doc.ID,
			Steps: []models.CausalStep{
				{Order: 1, Role: models.RoleTrigger, Description: "trigger"},
				{Order: 2, Role: models.RoleOutcome, Description: "outcome"},
			},
			Correlations: []models.StockCorrelation{{Symbol: "005930"}},
		},
		Events:       []models.MacroEvent{{Title: "event", SourceDocumentID: doc.ID}},
		QualityScore: 1,
	}
}

type memDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newMemDocs() *memDocs { return &memDocs{docs: map[string]*models.Document{}} }

func (s *memDocs) Save(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[d.ID] = d
	return nil
}

func (s *memDocs) Get(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	return d, nil
}

func (s *memDocs) ListSince(_ context.Context, since time.Time, limit int) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Document
	for _, d := range s.docs {
		if !d.PublishedAt.Before(since) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memDocs) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

type memChains struct {
	mu      sync.Mutex
	saved   []models.CausalChain
	lists   int
	saveErr error
}

func (s *memChains) Init(context.Context) error { return nil }

func (s *memChains) Save(_ context.Context, c *models.CausalChain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	c.ID = strconv.Itoa(len(s.saved) + 1)
	s.saved = append(s.saved, *c)
	return nil
}

func (s *memChains) List(_ context.Context, f drepo.ListFilter) ([]models.CausalChain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var out []models.CausalChain
	for i := len(s.saved) - 1; i >= 0; i-- {
		if f.SourceDocumentID == "" || s.saved[i].SourceDocumentID == f.SourceDocumentID {
			out = append(out, s.saved[i])
		}
	}
	return out, nil
}

func (s *memChains) Health(context.Context) error { return nil }
func (s *memChains) Close() error                 { return nil }

func (s *memChains) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type recordingPublisher struct {
	mu     sync.Mutex
	chains []string
	err    error
}

func (p *recordingPublisher) PublishChain(_ context.Context, c *models.CausalChain, _ []models.MacroEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.chains = append(p.chains, c.ID)
	return nil
}

var errBoom = errors.New("boom")
