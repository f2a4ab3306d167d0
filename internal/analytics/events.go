// Package analytics records what users search for. Events are batched onto
// the analytics Kafka topic and also aggregated in process for the stats
// endpoint.
package analytics

import "time"

type EventType string

const (
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
	EventIndexBuild EventType = "index_build"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Field     string    `json:"field"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type IndexEvent struct {
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}
