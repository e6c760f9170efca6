// Command query runs one search against the newest index segment and prints
// the full path of each matching file, best match first.
//
// Usage:
//
//	query [--index DIR] [--limit 10] [--scores] QUERY...
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/logger"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	indexDir := pflag.StringP("index", "i", "", "index directory (overrides indexer.indexDir)")
	limit := pflag.IntP("limit", "n", 10, "maximum number of results; 0 prints all")
	scores := pflag.BoolP("scores", "s", false, "print the score next to each path")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: query [flags] QUERY...\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexDir != "" {
		cfg.Indexer.IndexDir = *indexDir
	}
	// Diagnostics go to stderr so stdout carries only results.
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	q := strings.Join(pflag.Args(), " ")
	if err := run(cfg.Indexer.IndexDir, q, *limit, *scores); err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		if errors.Is(err, apperrors.ErrEmptyQuery) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(indexDir, q string, limit int, scores bool) error {
	idx, _, err := segment.OpenLatest(indexDir)
	if err != nil {
		return err
	}
	exec := executor.New(idx, nil)

	start := time.Now()
	result, err := exec.Search(context.Background(), q, limit)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Fprintf(os.Stderr, "Found %d document(s) (in %d milliseconds) that matched query '%s':\n",
		result.TotalHits, elapsed.Milliseconds(), q)
	for _, hit := range result.Results {
		path := hit.Fields[indexer.FieldFullPath]
		if path == "" {
			path = hit.DocID
		}
		if scores {
			fmt.Printf("%.6f\t%s\n", hit.Score, path)
		} else {
			fmt.Println(path)
		}
	}
	return nil
}
