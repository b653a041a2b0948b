package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MacroChain/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{}

func (failingSource) Load(context.Context) ([]models.Instrument, error) {
	return nil, errors.New("unavailable")
}

func TestReloadValidatesDedupsAndSorts(t *testing.T) {
	r := New(NewStaticSource([]models.Instrument{
		{Symbol: "TSLA", Names: []string{"Tesla"}},
		{Symbol: "005930", Names: []string{"Samsung Electronics"}},
		{Symbol: "TSLA", Names: []string{"Tesla Motors"}},
		{Symbol: "BAD"},
		{Symbol: " ", Names: []string{"Blank"}},
	}))
	assert.Zero(t, r.Snapshot().Len())

	set, err := r.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Instruments, 2)
	assert.Equal(t, "005930", set.Instruments[0].Symbol)
	assert.Equal(t, []string{"Tesla"}, set.Instruments[1].Names)
	assert.Same(t, set, r.Snapshot())
	assert.Equal(t, "r1", set.Version)
}

func TestReloadKeepsSnapshotOnError(t *testing.T) {
	r := New(NewStaticSource([]models.Instrument{{Symbol: "AAPL", Names: []string{"Apple"}}}))
	before, err := r.Reload(context.Background())
	require.NoError(t, err)

	r.source = failingSource{}
	_, err = r.Reload(context.Background())
	assert.Error(t, err)
	assert.Same(t, before, r.Snapshot())
}

func TestHTTPSourceRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"instruments":[{"symbol":"NVDA","names":["Nvidia"],"sectors":["semiconductor"]}]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second, 3)
	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Instrument{{Symbol: "NVDA", Names: []string{"Nvidia"}, Sectors: []string{"semiconductor"}}}, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSourceGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, time.Second, 2).Load(context.Background())
	assert.Error(t, err)

	_, err = NewHTTPSource("", time.Second, 1).Load(context.Background())
	assert.Error(t, err)
}
