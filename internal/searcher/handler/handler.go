// Package handler exposes the search executor over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/middleware"
)

type SearchExecutor interface {
	Parse(query string) (*parser.Query, error)
	Execute(ctx context.Context, plan *parser.Query, limit int) (*executor.SearchResult, error)
}

// ResultCache is satisfied by *cache.QueryCache.
type ResultCache interface {
	GetOrCompute(ctx context.Context, plan *parser.Query, limit int, computeFn func() (*executor.SearchResult, error)) (*executor.SearchResult, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats() (hits, misses int64)
}

type Tracker interface {
	Track(event analytics.SearchEvent)
}

// IndexInfo describes the loaded index for GET /api/v1/index.
type IndexInfo struct {
	Segment   string    `json:"segment"`
	Analyzer  string    `json:"analyzer"`
	Docs      int       `json:"docs"`
	Terms     int       `json:"terms"`
	CreatedAt time.Time `json:"created_at"`
}

type Options struct {
	DefaultLimit int
	MaxResults   int
	Cache        ResultCache
	Tracker      Tracker
	Metrics      *metrics.Metrics
	Index        IndexInfo
}

type Handler struct {
	executor SearchExecutor
	opts     Options
	logger   *slog.Logger
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	*executor.SearchResult
	Limit    int   `json:"limit"`
	CacheHit bool  `json:"cache_hit"`
	TookMs   int64 `json:"took_ms"`
}

func New(exec SearchExecutor, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		executor: exec,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.IndexStatus)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.executor.Parse(query)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptyQuery) {
			h.countQuery("empty_query")
		}
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	compute := func() (*executor.SearchResult, error) {
		return h.executor.Execute(ctx, plan, limit)
	}
	if h.opts.Cache != nil {
		result, cacheHit, err = h.opts.Cache.GetOrCompute(ctx, plan, limit, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.countQuery("error")
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}
	if cacheHit {
		h.countQuery(resultType(result))
	}

	took := time.Since(start)
	if h.opts.Metrics != nil {
		status := "miss"
		switch {
		case h.opts.Cache == nil:
			status = "disabled"
		case cacheHit:
			status = "hit"
		}
		h.opts.Metrics.SearchLatency.WithLabelValues(status).Observe(took.Seconds())
	}
	log.Info("query executed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", took.Milliseconds(),
	)
	if h.opts.Tracker != nil {
		eventType := analytics.EventSearch
		if result.TotalHits == 0 {
			eventType = analytics.EventZeroResult
		}
		h.opts.Tracker.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Canonical: plan.String(),
			Terms:     plan.Terms(),
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyMs: took.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, SearchResponse{
		SearchResult: result,
		Limit:        limit,
		CacheHit:     cacheHit,
		TookMs:       took.Milliseconds(),
	})
}

func (h *Handler) IndexStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.opts.Index)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.opts.Cache.Stats()
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
	if h.opts.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.opts.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return min(n, h.opts.MaxResults), nil
}

// countQuery records outcomes the executor never sees: parse failures,
// execution errors and cache hits.
func (h *Handler) countQuery(resultType string) {
	if h.opts.Metrics != nil {
		h.opts.Metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func resultType(r *executor.SearchResult) string {
	if r.TotalHits == 0 {
		return "zero_result"
	}
	return "hit"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
