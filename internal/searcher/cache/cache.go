// Package cache memoises search results in Redis. Keys are derived from the
// canonical form of the parsed query, so "Beautiful   GIRL" and
// "beautiful girl" share an entry, and from the loaded segment name, so a
// rebuilt index never serves stale results. Returned results always carry
// the caller's own spelling of the query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// ErrMiss is returned by a Store when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Store is the key-value backend. pkg/redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Options struct {
	TTL time.Duration
	// Generation scopes keys to one index build, typically the segment
	// file name.
	Generation string
	// IsMiss reports whether a Store error means "not found". Defaults to
	// errors.Is(err, ErrMiss).
	IsMiss  func(error) bool
	Metrics *metrics.Metrics
}

type QueryCache struct {
	store   Store
	opts    Options
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, opts Options) *QueryCache {
	if opts.IsMiss == nil {
		opts.IsMiss = func(err error) bool { return errors.Is(err, ErrMiss) }
	}
	return &QueryCache{
		store: store,
		opts:  opts,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
			IsFailure:        func(err error) bool { return err != nil && !opts.IsMiss(err) },
			OnStateChange:    stateGauge(opts.Metrics, "redis-cache"),
		}),
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get looks up a cached result. Backend failures count as misses.
func (c *QueryCache) Get(ctx context.Context, plan *parser.Query, limit int) (*executor.SearchResult, bool) {
	key := c.buildKey(plan, limit)
	data, err := resilience.Call(c.breaker, func() (string, error) {
		return c.store.Get(ctx, key)
	})
	if err != nil {
		if !c.opts.IsMiss(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.hits.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", plan.String(), "key", key)
	result.Query = plan.RawQuery
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, plan *parser.Query, limit int, result *executor.SearchResult) {
	key := c.buildKey(plan, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.opts.TTL)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for plan or runs computeFn once
// for all concurrent callers asking for the same key. The boolean reports
// a cache hit. computeFn should be bound to the caller's own context: if
// the shared computation fails because its owner's context ended, callers
// whose context is still live compute for themselves.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *parser.Query,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, plan, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(plan, limit)
	val, err, shared := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(context.WithoutCancel(ctx), plan, limit, result)
		return result, nil
	})
	if err != nil {
		if shared && ctx.Err() == nil && isContextError(err) {
			c.logger.Debug("shared computation cancelled, retrying", "query", plan.String())
			result, err := computeFn()
			if err != nil {
				return nil, false, err
			}
			return result, false, nil
		}
		return nil, false, err
	}
	result := val.(*executor.SearchResult)
	if shared {
		relabeled := *result
		relabeled.Query = plan.RawQuery
		result = &relabeled
	}
	return result, false, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Invalidate removes every cached search result, across generations.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState exposes the backend circuit state for health checks.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}

// Breaker reports the Redis circuit breaker for health checks.
func (c *QueryCache) Breaker() resilience.Snapshot {
	return c.breaker.Snapshot()
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) buildKey(plan *parser.Query, limit int) string {
	raw := fmt.Sprintf("%s|%s|limit=%d", c.opts.Generation, plan.String(), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func stateGauge(m *metrics.Metrics, name string) func(resilience.State) {
	if m == nil {
		return nil
	}
	return func(s resilience.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
	}
}
