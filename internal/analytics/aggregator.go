package analytics

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
)

const (
	// maxLatencySamples bounds the window percentiles are computed over.
	maxLatencySamples = 10000
	topQueries        = 10
)

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	IndexBuilds       int64            `json:"index_builds"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	SearchesByField   map[string]int64 `json:"searches_by_field"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	LastBuild         *IndexEvent      `json:"last_build,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running search statistics in memory. A query is counted
// by its field and analyzed terms, so "Lucene" and "lucene!" on title are
// the same query.
type Aggregator struct {
	mu          sync.RWMutex
	searches    int64
	builds      int64
	cacheHits   int64
	zeroResults int64
	latencies   []int64
	next        int
	byField     map[string]int64
	queries     map[string]int64
	zeroQueries map[string]int64
	lastBuild   *IndexEvent

	startTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		byField:     make(map[string]int64),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		startTime:   time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent feeds events from the analytics topic into agg. Messages that
// do not decode are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, key, value []byte) error {
		var head struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &head); err != nil {
			agg.logger.Warn("skipping undecodable analytics event", "key", string(key), "error", err)
			return nil
		}
		if head.Type == EventIndexBuild {
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				return err
			}
			agg.RecordIndex(event)
			return nil
		}
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return err
		}
		agg.Record(event)
		return nil
	}
}

// Track lets the aggregator sit next to a Collector as a search tracker.
func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.Record(e)
	case IndexEvent:
		a.RecordIndex(e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "type", fmt.Sprintf("%T", event))
	}
}

func (a *Aggregator) Record(event SearchEvent) {
	key := queryKey(event)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches++
	if event.CacheHit {
		a.cacheHits++
	}
	a.byField[event.Field]++
	a.queries[key]++
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroQueries[key]++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
		return
	}
	a.latencies[a.next] = event.LatencyMs
	a.next = (a.next + 1) % maxLatencySamples
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.builds++
	a.lastBuild = &event
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:     a.searches,
		IndexBuilds:       a.builds,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.searches - a.cacheHits,
		ZeroResultCount:   a.zeroResults,
		SearchesByField:   make(map[string]int64, len(a.byField)),
		TopQueries:        mostFrequent(a.queries, topQueries),
		ZeroResultQueries: mostFrequent(a.zeroQueries, topQueries),
	}
	for field, n := range a.byField {
		stats.SearchesByField[field] = n
	}
	if a.lastBuild != nil {
		last := *a.lastBuild
		stats.LastBuild = &last
	}
	if n := len(a.latencies); n > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, ms := range sorted {
			sum += ms
		}
		stats.AvgLatencyMs = float64(sum) / float64(n)
		stats.P50LatencyMs = sorted[rank(50, n)]
		stats.P95LatencyMs = sorted[rank(95, n)]
		stats.P99LatencyMs = sorted[rank(99, n)]
	}
	if minutes := a.now().Sub(a.startTime).Minutes(); minutes > 0 {
		stats.QueriesPerMinute = float64(a.searches) / minutes
	}
	return stats
}

func queryKey(event SearchEvent) string {
	if len(event.Terms) == 0 {
		return event.Field + ":" + event.Query
	}
	return event.Field + ":" + strings.Join(event.Terms, " ")
}

// rank is the index of the pct-th percentile in a sorted slice of n.
func rank(pct, n int) int {
	return min(pct*n/100, n-1)
}

// mostFrequent returns up to n queries by descending count, ties broken by
// query text.
func mostFrequent(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	slices.SortFunc(out, func(x, y QueryCount) int {
		return cmp.Or(cmp.Compare(y.Count, x.Count), strings.Compare(x.Query, y.Query))
	})
	return out[:min(n, len(out))]
}

func (a *Aggregator) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.Stats()); err != nil {
			a.logger.Error("failed to write analytics response", "error", err)
		}
	}
}
