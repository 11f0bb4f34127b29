package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
)

const (
	latencyWindow = 10000
	topLimit      = 10
)

// AggregatedStats is the report served by the analytics service and stored
// in snapshots.
type AggregatedStats struct {
	TotalSearches      int64        `json:"total_searches"`
	TotalAutocompletes int64        `json:"total_autocompletes"`
	CacheHits          int64        `json:"cache_hits"`
	CacheMisses        int64        `json:"cache_misses"`
	ZeroResultCount    int64        `json:"zero_result_count"`
	AvgRowsScanned     float64      `json:"avg_rows_scanned"`
	AvgLatencyMs       float64      `json:"avg_latency_ms"`
	P50LatencyMs       int64        `json:"p50_latency_ms"`
	P95LatencyMs       int64        `json:"p95_latency_ms"`
	P99LatencyMs       int64        `json:"p99_latency_ms"`
	TopQueries         []QueryCount `json:"top_queries"`
	ZeroResultQueries  []QueryCount `json:"zero_result_queries"`
	TopPrefixes        []QueryCount `json:"top_prefixes"`
	QueriesPerMinute   float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. Search latencies are kept
// for the most recent latencyWindow searches only.
type Aggregator struct {
	mu                 sync.Mutex
	totalSearches      int64
	totalAutocompletes int64
	cacheHits          int64
	cacheMisses        int64
	zeroResults        int64
	rowsScanned        int64
	latencies          []int64
	next               int
	queryCounts        map[string]int64
	zeroResultQueries  map[string]int64
	prefixCounts       map[string]int64
	startTime          time.Time
	now                func() time.Time
	logger             *slog.Logger
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		prefixCounts:      make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Seed restores totals and top lists from an earlier snapshot.
func (a *Aggregator) Seed(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches += s.TotalSearches
	a.totalAutocompletes += s.TotalAutocompletes
	a.cacheHits += s.CacheHits
	a.cacheMisses += s.CacheMisses
	a.zeroResults += s.ZeroResultCount
	a.rowsScanned += int64(s.AvgRowsScanned * float64(s.TotalSearches))
	for _, q := range s.TopQueries {
		a.queryCounts[q.Query] += q.Count
	}
	for _, q := range s.ZeroResultQueries {
		a.zeroResultQueries[q.Query] += q.Count
	}
	for _, q := range s.TopPrefixes {
		a.prefixCounts[q.Query] += q.Count
	}
}

// Record folds one event in.
func (a *Aggregator) Record(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev := e.(type) {
	case SearchEvent:
		a.totalSearches++
		if ev.CacheHit {
			a.cacheHits++
		} else {
			a.cacheMisses++
		}
		a.rowsScanned += int64(ev.RowsScanned)
		a.queryCounts[ev.Query]++
		if ev.TotalHits == 0 {
			a.zeroResults++
			a.zeroResultQueries[ev.Query]++
		}
		if len(a.latencies) < latencyWindow {
			a.latencies = append(a.latencies, ev.LatencyMs)
		} else {
			a.latencies[a.next] = ev.LatencyMs
			a.next = (a.next + 1) % latencyWindow
		}
	case AutocompleteEvent:
		a.totalAutocompletes++
		a.prefixCounts[ev.Prefix]++
	}
}

// HandleEvent adapts the Aggregator to a Kafka consumer. Undecodable
// messages are logged and committed so they are not redelivered. m may be
// nil.
func HandleEvent(agg *Aggregator, m *metrics.Metrics) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		e, err := DecodeEvent(value)
		if err != nil {
			agg.logger.Warn("skipping analytics message", "key", string(key), "error", err)
			if m != nil {
				m.AnalyticsEventsTotal.WithLabelValues("invalid").Inc()
			}
			return nil
		}
		agg.Record(e)
		if m != nil {
			m.AnalyticsEventsTotal.WithLabelValues("consumed").Inc()
		}
		return nil
	}
}

// Stats computes the current report.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:      a.totalSearches,
		TotalAutocompletes: a.totalAutocompletes,
		CacheHits:          a.cacheHits,
		CacheMisses:        a.cacheMisses,
		ZeroResultCount:    a.zeroResults,
	}
	if a.totalSearches > 0 {
		stats.AvgRowsScanned = float64(a.rowsScanned) / float64(a.totalSearches)
	}
	if len(a.latencies) > 0 {
		sorted := append([]int64(nil), a.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topLimit)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topLimit)
	stats.TopPrefixes = topN(a.prefixCounts, topLimit)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.totalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := min((pct*len(sorted))/100, len(sorted)-1)
	return sorted[idx]
}

// topN orders by count, then by query for a stable report.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
