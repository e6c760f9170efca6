// Package catalog keeps a history of index builds in PostgreSQL so operators
// can see when each segment was produced and how large it was. The catalog
// is optional: the index files are the source of truth.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS index_runs (
	id          BIGSERIAL PRIMARY KEY,
	segment     TEXT NOT NULL UNIQUE,
	path        TEXT NOT NULL,
	analyzer    TEXT NOT NULL,
	docs        INTEGER NOT NULL,
	terms       INTEGER NOT NULL,
	took_ms     BIGINT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Run is one row of index_runs.
type Run struct {
	ID         int64
	Segment    string
	Path       string
	Analyzer   string
	Docs       int
	Terms      int
	Took       time.Duration
	StartedAt  time.Time
	RecordedAt time.Time
}

type Store struct {
	db     *postgres.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		retry:  resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		logger: slog.Default().With("component", "catalog"),
	}
}

// EnsureSchema creates the index_runs table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// IndexBuilt records r. Re-recording the same segment is a no-op.
func (s *Store) IndexBuilt(ctx context.Context, r indexer.Report) error {
	err := resilience.Retry(ctx, "catalog-record-run", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO index_runs (segment, path, analyzer, docs, terms, took_ms, started_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (segment) DO NOTHING`,
				r.Segment, r.Path, r.Analyzer, r.Docs, r.Terms, r.Took.Milliseconds(), r.StartedAt.UTC(),
			)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("recording index run %s: %w", r.Segment, err)
	}
	s.logger.Info("index run recorded", "segment", r.Segment, "docs", r.Docs)
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, segment, path, analyzer, docs, terms, took_ms, started_at, recorded_at
		 FROM index_runs ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying index runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var r Run
		var tookMs int64
		if err := rows.Scan(&r.ID, &r.Segment, &r.Path, &r.Analyzer, &r.Docs, &r.Terms, &tookMs, &r.StartedAt, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning index run: %w", err)
		}
		r.Took = time.Duration(tookMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating index runs: %w", err)
	}
	return runs, nil
}
