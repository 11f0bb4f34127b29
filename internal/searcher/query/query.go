// Package query answers single-term keyword queries by joining the inverted
// index with a forward scan of the row log.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/rowstore"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
)

// Rows streams the row log.
type Rows interface {
	Stream(ctx context.Context, start ingestion.RowID) *rowstore.Scanner
}

// Result is the outcome of one query.
type Result struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ingestion.Record `json:"results"`
	// Scanned is the number of row log frames read.
	Scanned int `json:"-"`
	// Missing counts postings that pointed past the end of the log.
	Missing int `json:"-"`
}

// Search looks term up in idx and returns the matching rows in row id order.
// The term is only lower-cased. An unknown or empty term yields an empty,
// non-nil slice without touching the row log.
func Search(ctx context.Context, term string, idx index.InvertedIndex, rows Rows) ([]ingestion.Record, error) {
	res, err := Execute(ctx, term, idx, rows)
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

// Execute is Search with scan statistics.
func Execute(ctx context.Context, term string, idx index.InvertedIndex, rows Rows) (*Result, error) {
	res := &Result{Query: term, Results: []ingestion.Record{}}

	postings := idx.Lookup(strings.ToLower(term))
	maxID, ok := postings.Max()
	if !ok {
		return res, nil
	}

	want := roaring.New()
	for _, id := range postings {
		want.Add(uint32(id))
	}

	sc := rows.Stream(ctx, postings[0])
	defer sc.Close()
	for sc.Next() {
		id := sc.ID()
		if want.Contains(uint32(id)) {
			rec, err := sc.Record()
			if err != nil {
				return nil, fmt.Errorf("reading row %d: %w", id, err)
			}
			res.Results = append(res.Results, rec)
		}
		if id >= maxID {
			break
		}
	}
	res.Scanned = sc.Scanned()
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning rows for %q: %w", term, err)
	}

	res.TotalHits = len(res.Results)
	res.Missing = len(postings) - len(res.Results)
	if res.Missing > 0 {
		logger.FromContext(ctx).Warn("postings reference rows beyond the row log",
			"term", term,
			"missing", res.Missing,
			"max_row_id", maxID,
		)
	}
	return res, nil
}

// Engine serves queries against one loaded index and row log.
type Engine struct {
	idx     index.InvertedIndex
	rows    Rows
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine returns an Engine. m may be nil.
func NewEngine(idx index.InvertedIndex, rows Rows, m *metrics.Metrics) *Engine {
	return &Engine{
		idx:     idx,
		rows:    rows,
		metrics: m,
		logger:  slog.Default().With("component", "query-engine"),
	}
}

// Search runs one query and records its cost.
func (e *Engine) Search(ctx context.Context, term string) (*Result, error) {
	start := time.Now()
	res, err := Execute(ctx, term, e.idx, e.rows)
	if err != nil {
		if e.metrics != nil {
			e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if e.metrics != nil {
		resultType := "hit"
		if res.TotalHits == 0 {
			resultType = "zero_result"
		}
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		e.metrics.SearchResultsCount.Observe(float64(res.TotalHits))
		e.metrics.SearchRowsScanned.Observe(float64(res.Scanned))
		if res.Missing > 0 {
			e.metrics.SearchMissingRows.Add(float64(res.Missing))
		}
	}
	e.logger.Debug("query executed",
		"query", term,
		"total_hits", res.TotalHits,
		"rows_scanned", res.Scanned,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Tokens returns the number of distinct tokens in the loaded index.
func (e *Engine) Tokens() int {
	return e.idx.Tokens()
}
