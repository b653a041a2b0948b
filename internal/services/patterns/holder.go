package patterns

import (
	"fmt"
	"sync/atomic"
)

// Holder keeps the active library and swaps it atomically on reload.
// Runs already holding a *Library keep using their snapshot.
type Holder struct {
	path string
	cur  atomic.Pointer[Library]
}

// NewHolder loads the library at path (embedded default when empty).
func NewHolder(path string) (*Holder, error) {
	h := &Holder{path: path}
	if _, err := h.Reload(); err != nil {
		return nil, err
	}
	return h, nil
}

// NewStaticHolder wraps an already compiled library.
func NewStaticHolder(l *Library) *Holder {
	h := &Holder{}
	h.cur.Store(l)
	return h
}

// Current returns the active library snapshot.
func (h *Holder) Current() *Library { return h.cur.Load() }

// Reload re-reads the library source. On error the previous library stays active.
func (h *Holder) Reload() (*Library, error) {
	l, err := Load(h.path)
	if err != nil {
		return nil, fmt.Errorf("reload patterns: %w", err)
	}
	h.cur.Store(l)
	return l, nil
}
