package indexer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
)

// EngineConfig controls where a build is persisted and how documents are
// admitted.
type EngineConfig struct {
	IndexDir string
	Builder  BuilderOptions
	// KeepSegments leaves older segment files in IndexDir after a build.
	KeepSegments bool
}

// Report summarises one completed build.
type Report struct {
	Segment   string
	Path      string
	Analyzer  string
	Docs      int
	Terms     int
	StartedAt time.Time
	Took      time.Duration
}

// Observer is notified after a segment has been written. Failures are
// logged and never fail the build.
type Observer interface {
	IndexBuilt(ctx context.Context, r Report) error
}

// Engine runs a full build: drain a document source into a Builder, write
// the resulting index as a segment and tell the observers.
type Engine struct {
	cfg       EngineConfig
	writer    *segment.Writer
	metrics   *metrics.Metrics
	observers []Observer
	logger    *slog.Logger
}

// NewEngine prepares the index directory. m may be nil.
func NewEngine(cfg EngineConfig, m *metrics.Metrics, observers ...Observer) (*Engine, error) {
	if cfg.IndexDir == "" {
		return nil, fmt.Errorf("index directory is required")
	}
	if err := os.MkdirAll(cfg.IndexDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &Engine{
		cfg:       cfg,
		writer:    segment.NewWriter(cfg.IndexDir),
		metrics:   m,
		observers: observers,
		logger:    slog.Default().With("component", "indexer"),
	}, nil
}

// Run builds an index from src and persists it. The returned index is the
// one that was written. Cancelling ctx stops intake between documents.
func (e *Engine) Run(ctx context.Context, src iter.Seq2[Document, error]) (*index.Index, Report, error) {
	start := time.Now()
	idx, n, err := BuildIndex(e.watch(ctx, src), e.cfg.Builder)
	if err != nil {
		return nil, Report{}, fmt.Errorf("building index: %w", err)
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(n))
	}

	name, err := e.writer.Write(idx)
	if err != nil {
		e.countFlush("error")
		return nil, Report{}, fmt.Errorf("writing segment: %w", err)
	}
	e.countFlush("ok")

	if !e.cfg.KeepSegments {
		removed, err := segment.Prune(e.cfg.IndexDir, name)
		if err != nil {
			e.logger.Warn("pruning old segments failed", "error", err)
		} else if removed > 0 {
			e.logger.Info("old segments pruned", "removed", removed)
		}
	}

	report := Report{
		Segment:   name,
		Path:      filepath.Join(e.cfg.IndexDir, name),
		Analyzer:  string(idx.Analyzer()),
		Docs:      idx.DocCount(),
		Terms:     idx.TermCount(),
		StartedAt: start,
		Took:      time.Since(start),
	}
	if e.metrics != nil {
		e.metrics.IndexBuildDuration.Observe(report.Took.Seconds())
		e.metrics.IndexDocCount.Set(float64(report.Docs))
		e.metrics.IndexTermCount.Set(float64(report.Terms))
	}
	e.logger.Info("indexing complete",
		"docs", report.Docs,
		"terms", report.Terms,
		"segment", report.Segment,
		"took_ms", report.Took.Milliseconds(),
	)

	for _, o := range e.observers {
		if err := o.IndexBuilt(ctx, report); err != nil {
			e.logger.Warn("index observer failed", "error", err)
		}
	}
	return idx, report, nil
}

func (e *Engine) watch(ctx context.Context, src iter.Seq2[Document, error]) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		for doc, err := range src {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				yield(Document{}, err)
				return
			}
			e.logger.Debug("indexing file", "id", doc.ID)
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (e *Engine) countFlush(status string) {
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}
