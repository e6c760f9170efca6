package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
)

// Hit is one ranked document with its stored fields.
type Hit struct {
	DocID  string            `json:"doc_id"`
	Score  float64           `json:"score"`
	Fields map[string]string `json:"fields,omitempty"`
}

type SearchResult struct {
	Query     string         `json:"query"`
	TotalHits int            `json:"total_hits"`
	Results   []Hit          `json:"results"`
	TermStats map[string]int `json:"term_stats"`
}

// Executor evaluates queries against one immutable index. It holds no
// mutable state and is safe for concurrent use.
type Executor struct {
	idx     *index.Index
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Executor over idx. m may be nil.
func New(idx *index.Index, m *metrics.Metrics) *Executor {
	return &Executor{
		idx:     idx,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Index() *index.Index {
	return e.idx
}

// Parse analyzes query with the index's analyzer.
func (e *Executor) Parse(query string) (*parser.Query, error) {
	return parser.Parse(query, e.idx.Analyzer())
}

// Search parses and executes query in one step.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	plan, err := e.Parse(query)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan, limit)
}

func (e *Executor) Execute(ctx context.Context, plan *parser.Query, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("executing query %q: %w", plan.RawQuery, err)
	}
	start := time.Now()
	ranked, stats := ranker.Evaluate(plan, e.idx, limit)

	hits := make([]Hit, len(ranked))
	for i, doc := range ranked {
		hits[i] = Hit{
			DocID:  doc.DocID,
			Score:  doc.Score,
			Fields: e.idx.StoredFields(doc.DocID),
		}
	}
	elapsed := time.Since(start)
	if e.metrics != nil {
		resultType := "hit"
		if len(hits) == 0 {
			resultType = "zero_result"
		}
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		e.metrics.SearchEvalDuration.Observe(elapsed.Seconds())
		e.metrics.SearchResultsCount.Observe(float64(len(hits)))
	}
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms(),
		"candidates", stats.Candidates,
		"postings_touched", stats.PostingsTouched,
		"results", len(hits),
		"elapsed", elapsed,
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: stats.Candidates,
		Results:   hits,
		TermStats: stats.TermDocFreq,
	}, nil
}
