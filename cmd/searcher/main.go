// Command searcher serves the newest index segment over HTTP.
//
// Routes:
//
//	GET  /api/v1/search?q=...&limit=N
//	GET  /api/v1/index
//	GET  /api/v1/cache/stats
//	POST /api/v1/cache/invalidate
//	GET  /api/v1/analytics/stats
//	GET  /health/live, /health/ready, /metrics
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/development.yaml", "path to config file")
	indexDir := pflag.StringP("index", "i", "", "index directory (overrides indexer.indexDir)")
	port := pflag.IntP("port", "p", 0, "listen port (overrides server.port)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexDir != "" {
		cfg.Indexer.IndexDir = *indexDir
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index_dir", cfg.Indexer.IndexDir)

	idx, info, err := segment.OpenLatest(cfg.Indexer.IndexDir)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	slog.Info("index loaded",
		"segment", info.Path,
		"docs", info.Docs,
		"terms", info.Terms,
		"analyzer", idx.Analyzer(),
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	m.IndexDocCount.Set(float64(idx.DocCount()))
	m.IndexTermCount.Set(float64(idx.TermCount()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d docs, %d terms", idx.DocCount(), idx.TermCount()),
		}
	})

	var queryCache handler.ResultCache
	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			qc := cache.New(redisClient, cache.Options{
				TTL:        cfg.Redis.CacheTTL,
				Generation: info.Segment(),
				IsMiss:     pkgredis.IsNilError,
				Metrics:    m,
			})
			queryCache = qc
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if snap := qc.Breaker(); snap.State != resilience.StateClosed {
					return health.ComponentHealth{
						Status:  health.StatusDegraded,
						Message: fmt.Sprintf("circuit %s after %d failures", snap.State, snap.ConsecutiveFailures),
					}
				}
				return health.Ping(redisClient.Ping, false)(ctx)
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var publisher analytics.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}
	aggregator := analytics.NewAggregator()
	collector := analytics.NewCollector(publisher, aggregator, analytics.CollectorOptions{})
	collector.Start(ctx)
	defer collector.Close()

	exec := executor.New(idx, m)
	h := handler.New(exec, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Cache:        queryCache,
		Tracker:      collector,
		Metrics:      m,
		Index: handler.IndexInfo{
			Segment:   info.Segment(),
			Analyzer:  string(idx.Analyzer()),
			Docs:      info.Docs,
			Terms:     info.Terms,
			CreatedAt: info.CreatedAt,
		},
	})

	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go sweepLimiter(ctx, limiter)
		chain = middleware.RateLimit(limiter, m)(chain)
		slog.Info("rate limiting enabled", "per_minute", cfg.Server.RateLimit)
	}
	chain = middleware.CORS(middleware.CORSConfig{AllowOrigins: cfg.Server.AllowOrigins})(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// In-flight handlers finish before the deferred closers run.
	<-shutdownDone
	slog.Info("search service stopped")
}

func sweepLimiter(ctx context.Context, l *middleware.Limiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limiter swept idle clients", "removed", n)
			}
		}
	}
}
