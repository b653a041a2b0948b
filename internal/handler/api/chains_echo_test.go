package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/repository"
	"MacroChain/internal/service/registry"
	"MacroChain/internal/services/extraction"
	"MacroChain/internal/services/patterns"
	"MacroChain/internal/usecase"
	pkgsqlite "MacroChain/pkg/sqlite"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samsungBody = "The government announced export restrictions on semiconductors. " +
	"As a result, Samsung Electronics' supply chain is expected to be affected. " +
	"Consequently, Samsung Electronics' share price may rise."

type nopMetrics struct{}

func (nopMetrics) RecordMessageSent(string, string) {}
func (nopMetrics) RecordExtraction(string)          {}
func (nopMetrics) RecordCorrelations(int)           {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLatency(string, float64)    {}

type fakeQueue struct {
	mu       sync.Mutex
	payloads []interface{}
}

func (q *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, payload)
	return nil
}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (busyLocker) Unlock(context.Context, string) error                         { return nil }

type testAPI struct {
	e     *echo.Echo
	docs  *repository.SQLiteDocumentStore
	queue *fakeQueue
}

func newTestAPI(t *testing.T, limit RateLimit, opts ...usecase.ExtractorOption) *testAPI {
	t.Helper()
	ctx := context.Background()

	client, err := pkgsqlite.NewClient(pkgsqlite.WithPath(filepath.Join(t.TempDir(), "api.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	chains := repository.NewSQLiteChainStore(client)
	require.NoError(t, chains.Init(ctx))
	docs := repository.NewSQLiteDocumentStore(client)

	reg := registry.New(registry.NewStaticSource([]models.Instrument{
		{Symbol: "005930", Names: []string{"Samsung Electronics"}, Sectors: []string{"semiconductor"}},
	}))
	_, err = reg.Reload(ctx)
	require.NoError(t, err)
	holder, err := patterns.NewHolder("")
	require.NoError(t, err)

	ext := usecase.NewChainExtractor(extraction.NewRuntime(holder, reg), docs, chains, nopMetrics{}, opts...)
	q := &fakeQueue{}
	h := NewChainsEchoHandler(nil, usecase.NewChainQuery(chains, nil, 0), ext, docs, q, reg, holder, limit)

	e := echo.New()
	h.RegisterRoutes(e)
	return &testAPI{e: e, docs: docs, queue: q}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func extractBody(t *testing.T, id, body string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"id": id, "body": body, "date": "2024-03-01"})
	require.NoError(t, err)
	return string(b)
}

func TestExtractThenList(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	code, env := a.do(t, http.MethodPost, "/api/chains/extract", extractBody(t, "doc-1", samsungBody))
	require.Equal(t, http.StatusOK, code)
	var res ExtractResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotNil(t, res.Chain)
	assert.Empty(t, res.Reason)
	assert.NotEmpty(t, res.Chain.ID)
	require.Len(t, res.Chain.Correlations, 1)
	assert.Equal(t, "005930", res.Chain.Correlations[0].Symbol)
	assert.True(t, res.Chain.Correlations[0].ExpectedImpact.Bullish())

	// same document again: a second row, collapsed on read
	code, _ = a.do(t, http.MethodPost, "/api/chains/extract", extractBody(t, "doc-1", samsungBody))
	require.Equal(t, http.StatusOK, code)

	code, env = a.do(t, http.MethodGet, "/api/chains?source_document_id=doc-1", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []models.CausalChain `json:"rows"`
		Total int64                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 1)
	assert.Equal(t, int64(1), list.Total)
	assert.Len(t, list.Rows[0].Steps, 3)
	assert.NotEqual(t, res.Chain.ID, list.Rows[0].ID, "latest duplicate wins")
}

func TestExtractNegativeOutcome(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	code, env := a.do(t, http.MethodPost, "/api/chains/extract", extractBody(t, "doc-2", "The weather was sunny in Seoul today."))
	require.Equal(t, http.StatusOK, code)
	var res ExtractResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Nil(t, res.Chain)
	assert.Equal(t, "no_event", res.Reason)
	assert.NotNil(t, res.Events)
}

func TestValidationErrors(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	code, env := a.do(t, http.MethodPost, "/api/chains/extract", `{"id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), `"field":"body"`)

	code, _ = a.do(t, http.MethodGet, "/api/chains?limit=500", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.do(t, http.MethodGet, "/api/chains", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"rows":[]`)
}

func TestExtractInFlightConflict(t *testing.T) {
	a := newTestAPI(t, RateLimit{}, usecase.WithLocker(busyLocker{}, time.Minute))

	code, env := a.do(t, http.MethodPost, "/api/chains/extract", extractBody(t, "doc-1", samsungBody))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, http.StatusConflict, env.Status)
}

func TestExtractRateLimited(t *testing.T) {
	a := newTestAPI(t, RateLimit{Capacity: 1, RefillPerSec: 0.001})

	code, _ := a.do(t, http.MethodPost, "/api/chains/extract", extractBody(t, "doc-1", samsungBody))
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPost, "/api/chains/extract", extractBody(t, "doc-2", samsungBody))
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestEnqueueExtract(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	code, _ := a.do(t, http.MethodPost, "/api/documents/missing/extract", "")
	assert.Equal(t, http.StatusNotFound, code)

	require.NoError(t, a.docs.Save(context.Background(), &models.Document{ID: "doc-9", Body: samsungBody}))
	code, env := a.do(t, http.MethodPost, "/api/documents/doc-9/extract", "")
	require.Equal(t, http.StatusAccepted, code)
	assert.JSONEq(t, `{"document_id":"doc-9"}`, string(env.Data))
	require.Len(t, a.queue.payloads, 1)
	assert.Equal(t, usecase.ExtractDocumentPayload{DocumentID: "doc-9"}, a.queue.payloads[0])
}

func TestReloadEndpoints(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	code, env := a.do(t, http.MethodPost, "/api/registry/reload", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"instruments":1`)

	code, env = a.do(t, http.MethodPost, "/api/patterns/reload", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"version"`)
}
