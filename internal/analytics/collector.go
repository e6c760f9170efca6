package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/resilience"
)

// Publisher is the subset of kafka.Producer the collector needs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector fans search events out to a local Aggregator and, when a
// publisher is configured, to Kafka in batches. Track never blocks the
// request path: events are dropped once the buffer is full.
type Collector struct {
	publisher  Publisher
	aggregator *Aggregator
	opts       CollectorOptions
	eventCh    chan SearchEvent
	logger     *slog.Logger
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewCollector creates a Collector. Either publisher or aggregator may be
// nil.
func NewCollector(publisher Publisher, aggregator *Aggregator, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:  publisher,
		aggregator: aggregator,
		opts:       opts,
		eventCh:    make(chan SearchEvent, opts.BufferSize),
		logger:     slog.Default().With("component", "analytics-collector"),
		done:       make(chan struct{}),
	}
}

// Start launches the publish loop. It returns immediately; Close waits for
// the loop to drain.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"batch_size", c.opts.BatchSize,
		"publishing", c.publisher != nil,
	)
}

func (c *Collector) Track(event SearchEvent) {
	if c.aggregator != nil {
		c.aggregator.Record(event)
	}
	if c.publisher == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.logger.Debug("analytics event dropped (collector closed)")
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and flushes what is buffered. Events
// tracked afterwards still reach the aggregator but are not published.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()
	batch := make([]kafka.Event, 0, c.opts.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("analytics batch dropped", "events", len(batch), "error", err)
		} else {
			c.logger.Debug("analytics batch published", "events", len(batch))
		}
		batch = batch[:0]
	}
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				flush(flushCtx)
				cancel()
				return
			}
			batch = append(batch, kafka.Event{Key: event.Canonical, Value: event})
			if len(batch) >= c.opts.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.drain(&batch)
			flush(flushCtx)
			cancel()
			return
		}
	}
}

func (c *Collector) drain(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, kafka.Event{Key: event.Canonical, Value: event})
		default:
			return
		}
	}
}

// IndexNotifier publishes an IndexEvent for every completed build. It
// satisfies indexer.Observer.
type IndexNotifier struct {
	publisher Publisher
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

func NewIndexNotifier(publisher Publisher) *IndexNotifier {
	return &IndexNotifier{
		publisher: publisher,
		retry:     resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		logger:    slog.Default().With("component", "index-notifier"),
	}
}

func (n *IndexNotifier) IndexBuilt(ctx context.Context, r indexer.Report) error {
	event := IndexEvent{
		Type:      EventIndexComplete,
		Segment:   r.Segment,
		Analyzer:  r.Analyzer,
		Docs:      r.Docs,
		Terms:     r.Terms,
		TookMs:    r.Took.Milliseconds(),
		Timestamp: r.StartedAt.Add(r.Took).UTC(),
	}
	err := resilience.Retry(ctx, "publish-index-complete", n.retry, func() error {
		return n.publisher.Publish(ctx, kafka.Event{Key: r.Segment, Value: event})
	})
	if err != nil {
		return fmt.Errorf("publishing index event for %s: %w", r.Segment, err)
	}
	n.logger.Info("index event published", "segment", r.Segment, "docs", r.Docs)
	return nil
}
