// Package handler serves the search HTTP API: ranked search, stored document
// lookup, single-term TF-IDF scores and query cache administration.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/tracing"
)

// SearchExecutor is satisfied by *executor.Executor.
type SearchExecutor interface {
	Execute(ctx context.Context, q *parser.Query, topK int) (*executor.SearchResult, error)
}

// Documents is the stored-document side of the engine.
type Documents interface {
	Document(docID int) (store.Fields, error)
	GetField(docID int, name string) (string, error)
	TFIDF(docID int, term, field string) float64
}

// Tracker receives analytics events. Both *analytics.Collector and
// *analytics.Aggregator implement it.
type Tracker interface {
	Track(event any)
}

type Handler struct {
	executor SearchExecutor
	docs     Documents
	cache    *cache.QueryCache
	trackers []Tracker
	cfg      config.SearchConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Handler. queryCache may be nil to disable caching.
func New(exec SearchExecutor, docs Documents, queryCache *cache.QueryCache, cfg config.SearchConfig) *Handler {
	return &Handler{
		executor: exec,
		docs:     docs,
		cache:    queryCache,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// WithTrackers adds analytics sinks that receive one event per search.
func (h *Handler) WithTrackers(trackers ...Tracker) *Handler {
	h.trackers = append(h.trackers, trackers...)
	return h
}

func (h *Handler) WithMetrics(m *metrics.Metrics) *Handler {
	h.metrics = m
	return h
}

// Search handles GET /api/v1/search?q=&field=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(log)
	}()
	params := r.URL.Query()

	field := params.Get("field")
	if field == "" {
		field = h.cfg.DefaultField
	}
	limit, err := h.limit(params.Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	q, err := parser.Parse(params.Get("q"), field)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var result *executor.SearchResult
	cacheStatus := "disabled"
	cacheHit := false
	if h.cache != nil {
		span.SetAttr("cache", "enabled")
		result, cacheHit, err = h.cache.GetOrCompute(ctx, q, limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, q, limit)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.executor.Execute(ctx, q, limit)
	}
	if err != nil {
		log.Error("search execution failed", "query", q.String(), "error", err)
		h.writeError(w, err)
		return
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	}
	log.Info("search completed",
		"query", q.String(),
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
		"cache", cacheStatus,
		"latency_ms", elapsed.Milliseconds(),
	)
	h.track(ctx, q, result, cacheHit, elapsed)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) limit(raw string) (int, error) {
	if raw == "" {
		return h.cfg.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(limit, h.cfg.MaxResults), nil
}

func (h *Handler) track(ctx context.Context, q *parser.Query, result *executor.SearchResult, cacheHit bool, elapsed time.Duration) {
	if len(h.trackers) == 0 {
		return
	}
	eventType := analytics.EventCacheMiss
	switch {
	case result.TotalHits == 0:
		eventType = analytics.EventZeroResult
	case cacheHit:
		eventType = analytics.EventCacheHit
	}
	event := analytics.SearchEvent{
		Type:      eventType,
		Query:     q.Raw(),
		Field:     q.Field(),
		Terms:     q.Terms(),
		TotalHits: result.TotalHits,
		Returned:  len(result.Hits),
		LatencyMs: elapsed.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	}
	for _, t := range h.trackers {
		t.Track(event)
	}
}

// DocumentResponse is a stored document with its field values flattened.
type DocumentResponse struct {
	ID     int               `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Document handles GET /api/v1/documents/{id}. With ?field= it returns only
// that field.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	docID, err := docIDParam(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if name := r.URL.Query().Get("field"); name != "" {
		value, err := h.docs.GetField(docID, name)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, DocumentResponse{ID: docID, Fields: map[string]string{name: value}})
		return
	}
	fields, err := h.docs.Document(docID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := DocumentResponse{ID: docID, Fields: make(map[string]string, len(fields))}
	for name, f := range fields {
		resp.Fields[name] = f.Value
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type TFIDFResponse struct {
	DocID int     `json:"doc_id"`
	Term  string  `json:"term"`
	Field string  `json:"field"`
	Score float64 `json:"score"`
}

// TFIDF handles GET /api/v1/tfidf?doc=&term=&field=. Unknown documents are
// 404; a term the document lacks scores 0.
func (h *Handler) TFIDF(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	docID, err := docIDParam(params.Get("doc"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	term := params.Get("term")
	if term == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'term' is required"))
		return
	}
	field := params.Get("field")
	if field == "" {
		field = h.cfg.DefaultField
	}
	if _, err := h.docs.Document(docID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, TFIDFResponse{
		DocID: docID,
		Term:  term,
		Field: field,
		Score: h.docs.TFIDF(docID, term, field),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func docIDParam(raw string) (int, error) {
	docID, err := strconv.Atoi(raw)
	if err != nil || docID < 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid document id %q", raw)
	}
	return docID, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its HTTP status. Server-side failures are reported
// without detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "search failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
