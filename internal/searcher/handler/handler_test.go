package handler

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/redis"
)

var searchCfg = config.SearchConfig{DefaultField: "title", DefaultLimit: 10, MaxResults: 3}

func bookEngine(t *testing.T) *indexer.Engine {
	t.Helper()
	e := indexer.NewEngine(config.IndexerConfig{DataDir: t.TempDir(), BuildWorkers: 2})
	_, err := source.LoadAll(context.Background(), e, source.Sample())
	require.NoError(t, err)
	require.NoError(t, e.BuildIndex(context.Background()))
	return e
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/tfidf", h.TFIDF)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

type recordingTracker struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingTracker) Track(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	clear(m.data)
	return n, nil
}

func TestSearchRanksHits(t *testing.T) {
	e := bookEngine(t)
	mux := newMux(New(executor.New(e), e, nil, searchCfg))

	rec, body := do(t, mux, http.MethodGet, "/api/v1/search?q=Lucene")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "title", body["field"])
	assert.EqualValues(t, 2, body["total_hits"])

	hits := body["hits"].([]any)
	require.Len(t, hits, 2)
	want := math.Log(5.0/3.0) + 1
	for i, hit := range hits {
		h := hit.(map[string]any)
		assert.EqualValues(t, i, h["doc_id"])
		assert.InDelta(t, want, h["score"], 1e-12)
	}
}

func TestSearchOtherField(t *testing.T) {
	e := bookEngine(t)
	mux := newMux(New(executor.New(e), e, nil, searchCfg))

	_, body := do(t, mux, http.MethodGet, "/api/v1/search?q=gigabytes&field=field")
	assert.EqualValues(t, 1, body["total_hits"])

	_, body = do(t, mux, http.MethodGet, "/api/v1/search?q=gigabytes&field=content")
	assert.EqualValues(t, 0, body["total_hits"])
	assert.Empty(t, body["hits"])
}

func TestSearchLimitIsClamped(t *testing.T) {
	e := bookEngine(t)
	mux := newMux(New(executor.New(e), e, nil, searchCfg))

	_, body := do(t, mux, http.MethodGet, "/api/v1/search?q=lucene+gigabytes+art+science&limit=50")
	assert.EqualValues(t, 4, body["total_hits"])
	assert.Len(t, body["hits"], searchCfg.MaxResults)
}

func TestSearchBadRequests(t *testing.T) {
	e := bookEngine(t)
	mux := newMux(New(executor.New(e), e, nil, searchCfg))

	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=!!!",
		"/api/v1/search?q=lucene&limit=0",
		"/api/v1/search?q=lucene&limit=ten",
	} {
		rec, body := do(t, mux, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestSearchBeforeBuild(t *testing.T) {
	e := indexer.NewEngine(config.IndexerConfig{BuildWorkers: 1})
	mux := newMux(New(executor.New(e), e, nil, searchCfg))

	rec, _ := do(t, mux, http.MethodGet, "/api/v1/search?q=lucene")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchUsesCache(t *testing.T) {
	e := bookEngine(t)
	qc := cache.New(&memStore{data: make(map[string]string)}, config.RedisConfig{CacheTTL: time.Minute})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tracker := &recordingTracker{}
	h := New(executor.New(e), e, qc, searchCfg).WithMetrics(m).WithTrackers(tracker)
	mux := newMux(h)

	_, first := do(t, mux, http.MethodGet, "/api/v1/search?q=lucene")
	_, second := do(t, mux, http.MethodGet, "/api/v1/search?q=LUCENE!")
	assert.Equal(t, first["hits"], second["hits"])

	_, stats := do(t, mux, http.MethodGet, "/api/v1/cache/stats")
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])

	assert.Equal(t, 2, testutil.CollectAndCount(m.SearchLatency))
	require.Len(t, tracker.events, 2)
	assert.Equal(t, analytics.EventCacheMiss, tracker.events[0].(analytics.SearchEvent).Type)
	second0 := tracker.events[1].(analytics.SearchEvent)
	assert.Equal(t, analytics.EventCacheHit, second0.Type)
	assert.Equal(t, "LUCENE!", second0.Query)
	assert.Equal(t, []string{"lucene"}, second0.Terms)

	rec, body := do(t, mux, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["keys_deleted"])
}

func TestZeroResultEvent(t *testing.T) {
	e := bookEngine(t)
	agg := analytics.NewAggregator()
	mux := newMux(New(executor.New(e), e, nil, searchCfg).WithTrackers(agg))

	do(t, mux, http.MethodGet, "/api/v1/search?q=haskell")
	stats := agg.Stats()
	assert.EqualValues(t, 1, stats.TotalSearches)
	assert.EqualValues(t, 1, stats.ZeroResultCount)
}

func TestCacheDisabled(t *testing.T) {
	e := bookEngine(t)
	mux := newMux(New(executor.New(e), e, nil, searchCfg))

	_, body := do(t, mux, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, "disabled", body["status"])
	rec, _ := do(t, mux, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDocument(t *testing.T) {
	e := bookEngine(t)
	mux := newMux(New(executor.New(e), e, nil, searchCfg))

	rec, body := do(t, mux, http.MethodGet, "/api/v1/documents/2")
	require.Equal(t, http.StatusOK, rec.Code)
	fields := body["fields"].(map[string]any)
	assert.Equal(t, "Managing Gigabytes", fields["title"])
	assert.Equal(t, "55063554A", fields["isbn"])
	assert.Equal(t, "", fields["content"])

	_, body = do(t, mux, http.MethodGet, "/api/v1/documents/0?field=isbn")
	assert.Equal(t, map[string]any{"isbn": "193398817"}, body["fields"])

	rec, _ = do(t, mux, http.MethodGet, "/api/v1/documents/9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, mux, http.MethodGet, "/api/v1/documents/0?field=author")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, mux, http.MethodGet, "/api/v1/documents/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTFIDF(t *testing.T) {
	e := bookEngine(t)
	mux := newMux(New(executor.New(e), e, nil, searchCfg))

	rec, body := do(t, mux, http.MethodGet, "/api/v1/tfidf?doc=2&term=Gigabytes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "title", body["field"])
	assert.InDelta(t, math.Log(5.0/2.0)+1, body["score"], 1e-12)

	_, body = do(t, mux, http.MethodGet, "/api/v1/tfidf?doc=0&term=gigabytes")
	assert.EqualValues(t, 0, body["score"])

	rec, _ = do(t, mux, http.MethodGet, "/api/v1/tfidf?doc=7&term=lucene")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, mux, http.MethodGet, "/api/v1/tfidf?doc=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
