// Package cache keeps query results in Redis behind a circuit breaker and
// collapses concurrent identical misses into one computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the key-value backend; *redis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushPrefix(ctx context.Context, prefix string) (int64, error)
}

// Stats are the counters exposed by the cache stats endpoint.
type Stats struct {
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Errors       int64  `json:"errors"`
	Generation   string `json:"generation"`
	CircuitState string `json:"circuit_state"`
}

// QueryCache caches query.Result values per lower-cased term.
type QueryCache struct {
	store      Store
	ttl        time.Duration
	generation string
	breaker    *resilience.CircuitBreaker
	group      singleflight.Group
	metrics    *metrics.Metrics
	logger     *slog.Logger
	hits       atomic.Int64
	misses     atomic.Int64
	errors     atomic.Int64
}

// New returns a QueryCache. generation scopes keys to one set of loaded
// artifacts so a rebuilt index never serves stale results. m may be nil.
func New(store Store, ttl time.Duration, generation string, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:      store,
		ttl:        ttl,
		generation: generation,
		metrics:    m,
		logger:     slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		IsFailure:        func(err error) bool { return !pkgredis.IsNilError(err) },
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Get returns the cached result for term. Backend failures count as misses.
func (c *QueryCache) Get(ctx context.Context, term string) (*query.Result, bool) {
	key := c.key(term)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.errors.Add(1)
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var res query.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache entry undecodable", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &res, true
}

// Set stores res for term. Failures are logged, never returned.
func (c *QueryCache) Set(ctx context.Context, term string, res *query.Result) {
	key := c.key(term)
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once for all
// concurrent callers asking for the same term. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(ctx context.Context, term string, compute func(ctx context.Context) (*query.Result, error)) (*query.Result, bool, error) {
	if res, ok := c.Get(ctx, term); ok {
		return res, true, nil
	}
	val, err, _ := c.group.Do(c.key(term), func() (any, error) {
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, term, res)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*query.Result), false, nil
}

// Invalidate drops every cached result, across generations.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushPrefix(ctx, keyPrefix)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns the counters since start.
func (c *QueryCache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.errors.Load(),
		Generation:   c.generation,
		CircuitState: c.breaker.GetState().String(),
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) key(term string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(term)))
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.generation, sum[:16])
}
