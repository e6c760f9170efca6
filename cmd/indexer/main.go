// Command indexer builds a search index from a directory of text files and
// writes it as a segment into the index directory.
//
// Usage:
//
//	indexer [--config configs/development.yaml] [--data DIR] [--index DIR]
package main

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/intake"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	dataDir := pflag.StringP("data", "d", "", "directory of files to index (overrides indexer.dataDir)")
	indexDir := pflag.StringP("index", "i", "", "directory to write the index into (overrides indexer.indexDir)")
	analyzer := pflag.String("analyzer", "", "plain or english (overrides indexer.analyzer)")
	duplicates := pflag.String("duplicates", "", "reject or overwrite (overrides indexer.duplicatePolicy)")
	recursive := pflag.BoolP("recursive", "r", false, "descend into subdirectories")
	quiet := pflag.BoolP("quiet", "q", false, "do not print each indexed file")
	history := pflag.Int("history", 0, "print the N most recent catalog entries and exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Indexer.DataDir = *dataDir
	}
	if *indexDir != "" {
		cfg.Indexer.IndexDir = *indexDir
	}
	if *analyzer != "" {
		cfg.Indexer.Analyzer = *analyzer
	}
	if *duplicates != "" {
		cfg.Indexer.DuplicatePolicy = *duplicates
	}
	if pflag.CommandLine.Changed("recursive") {
		cfg.Indexer.Recursive = *recursive
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *quiet, *history); err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, quiet bool, history int) error {
	var observers []indexer.Observer

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			if history > 0 {
				return err
			}
			slog.Warn("postgres unavailable, index catalog disabled", "error", err)
		} else {
			defer db.Close()
			store := catalog.NewStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			if history > 0 {
				return printHistory(ctx, store, history)
			}
			observers = append(observers, store)
		}
	} else if history > 0 {
		return fmt.Errorf("--history needs postgres.enabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		observers = append(observers, analytics.NewIndexNotifier(producer))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	an := tokenizer.ParseAnalyzer(cfg.Indexer.Analyzer)
	policy, err := indexer.ParseDuplicatePolicy(cfg.Indexer.DuplicatePolicy)
	if err != nil {
		return err
	}
	engine, err := indexer.NewEngine(indexer.EngineConfig{
		IndexDir:     cfg.Indexer.IndexDir,
		Builder:      indexer.BuilderOptions{Analyzer: an, Duplicates: policy},
		KeepSegments: cfg.Indexer.KeepSegments,
	}, m, observers...)
	if err != nil {
		return err
	}

	slog.Info("indexing started",
		"data_dir", cfg.Indexer.DataDir,
		"index_dir", cfg.Indexer.IndexDir,
		"analyzer", an,
		"duplicates", policy,
	)
	src := intake.Collect(ctx, cfg.Indexer.DataDir, intake.Options{
		Extensions:    cfg.Indexer.Extensions,
		Recursive:     cfg.Indexer.Recursive,
		IncludeHidden: cfg.Indexer.IncludeHidden,
		Concurrency:   cfg.Indexer.ReadConcurrency,
		MaxFileSize:   cfg.Indexer.MaxFileSize,
		OnSkip: func(path, reason string) {
			m.FilesSkippedTotal.WithLabelValues(reason).Inc()
		},
	})
	if !quiet {
		src = announce(src)
	}

	start := time.Now()
	_, report, err := engine.Run(ctx, src)
	if err != nil {
		return err
	}
	fmt.Printf("Indexing %d files took %d milliseconds\n", report.Docs, time.Since(start).Milliseconds())
	return nil
}

func announce(src iter.Seq2[indexer.Document, error]) iter.Seq2[indexer.Document, error] {
	return func(yield func(indexer.Document, error) bool) {
		for doc, err := range src {
			if err == nil {
				fmt.Printf("Indexing %s\n", doc.ID)
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}

func printHistory(ctx context.Context, store *catalog.Store, n int) error {
	runs, err := store.Recent(ctx, n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-28s %-8s docs=%-7d terms=%-8d took=%v\n",
			r.StartedAt.Local().Format(time.RFC3339), r.Segment, r.Analyzer, r.Docs, r.Terms, r.Took)
	}
	return nil
}
