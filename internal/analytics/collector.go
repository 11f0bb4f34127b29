package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
)

// Publisher writes a batch of events; *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// CollectorConfig sizes the in-memory buffer and the publish batches.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	return c
}

// Collector buffers events off the request path and publishes them in
// batches. Track never blocks; a full buffer drops the event.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	events    chan Event
	done      chan struct{}
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewCollector returns a Collector. m may be nil.
func NewCollector(p Publisher, cfg CollectorConfig, m *metrics.Metrics) *Collector {
	cfg = cfg.withDefaults()
	return &Collector{
		publisher: p,
		cfg:       cfg,
		events:    make(chan Event, cfg.BufferSize),
		done:      make(chan struct{}),
		metrics:   m,
		logger:    slog.Default().With("component", "analytics-collector"),
	}
}

// Track enqueues e.
func (c *Collector) Track(e Event) {
	select {
	case c.events <- e:
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped, buffer full", "type", e.eventType())
	}
}

// Run publishes batches until ctx is cancelled, then flushes what is left
// with a short deadline.
func (c *Collector) Run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	c.logger.Info("analytics collector started", "buffer_size", c.cfg.BufferSize, "batch_size", c.cfg.BatchSize)
	for {
		select {
		case e := <-c.events:
			batch = append(batch, kafka.Event{Key: e.key(), Value: e})
			if len(batch) >= c.cfg.BatchSize {
				batch = c.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
		drain:
			for {
				select {
				case e := <-c.events:
					batch = append(batch, kafka.Event{Key: e.key(), Value: e})
				default:
					break drain
				}
			}
			c.flush(flushCtx, batch)
			return
		}
	}
}

// Wait blocks until Run has returned.
func (c *Collector) Wait() {
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.Publish(ctx, batch...); err != nil {
		c.count("failed", len(batch))
		c.logger.Error("publishing analytics batch", "events", len(batch), "error", err)
	} else {
		c.count("published", len(batch))
	}
	return batch[:0]
}

func (c *Collector) count(outcome string, n int) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}
