package analytics

import "time"

type EventType string

const (
	EventSearch        EventType = "search"
	EventZeroResult    EventType = "zero_result"
	EventEmptyQuery    EventType = "empty_query"
	EventIndexComplete EventType = "index_complete"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Canonical string    `json:"canonical"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// IndexEvent is published once per completed index build.
type IndexEvent struct {
	Type      EventType `json:"type"`
	Segment   string    `json:"segment"`
	Analyzer  string    `json:"analyzer"`
	Docs      int       `json:"docs"`
	Terms     int       `json:"terms"`
	TookMs    int64     `json:"took_ms"`
	Timestamp time.Time `json:"timestamp"`
}
