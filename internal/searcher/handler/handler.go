// Package handler exposes keyword search, autocomplete and cache control
// over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
)

// Routes lists the paths served, for metrics labelling.
var Routes = []string{
	"/",
	"/api/search",
	"/api/v1/search",
	"/api/v1/autocomplete",
	"/api/v1/cache/stats",
	"/api/v1/cache/invalidate",
	"/health/live",
	"/health/ready",
}

// CacheHeader reports HIT or MISS on search responses when caching is on.
const CacheHeader = "X-Cache"

// Searcher answers one keyword query.
type Searcher interface {
	Search(ctx context.Context, term string) (*query.Result, error)
}

// Completer lists vocabulary words under a prefix in lexicographic order.
type Completer interface {
	Complete(prefix string, limit int) []string
}

// Tracker receives analytics events.
type Tracker interface {
	Track(e analytics.Event)
}

// Options bounds request parameters.
type Options struct {
	MaxTermLength        int
	AutocompleteLimit    int
	MaxAutocompleteLimit int
}

// AutocompleteResponse is the body of /api/v1/autocomplete.
type AutocompleteResponse struct {
	Prefix      string   `json:"prefix"`
	Suggestions []string `json:"suggestions"`
}

type Handler struct {
	searcher  Searcher
	completer Completer
	cache     *cache.QueryCache
	tracker   Tracker
	metrics   *metrics.Metrics
	opts      Options
	logger    *slog.Logger
}

// New returns a Handler. queryCache, tracker and m may be nil.
func New(s Searcher, c Completer, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics, opts Options) *Handler {
	if opts.MaxTermLength <= 0 {
		opts.MaxTermLength = 1024
	}
	if opts.MaxAutocompleteLimit <= 0 {
		opts.MaxAutocompleteLimit = 100
	}
	if opts.AutocompleteLimit <= 0 || opts.AutocompleteLimit > opts.MaxAutocompleteLimit {
		opts.AutocompleteLimit = min(10, opts.MaxAutocompleteLimit)
	}
	return &Handler{
		searcher:  s,
		completer: c,
		cache:     queryCache,
		tracker:   tracker,
		metrics:   m,
		opts:      opts,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /api/search", h.LegacySearch)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/autocomplete", h.Autocomplete)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Root confirms the server is up.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "search server running"})
}

// Search answers GET /api/v1/search?q=term.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.search(w, r, r.URL.Query().Get("q"))
	if err != nil {
		apperrors.WriteHTTP(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// LegacySearch answers GET /api/search?searchValue=term with a bare array of
// rows.
func (h *Handler) LegacySearch(w http.ResponseWriter, r *http.Request) {
	res, err := h.search(w, r, r.URL.Query().Get("searchValue"))
	if err != nil {
		apperrors.WriteHTTP(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res.Results)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, term string) (*query.Result, error) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if len(term) > h.opts.MaxTermLength {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"search term must be at most %d bytes", h.opts.MaxTermLength)
	}
	if !utf8.ValidString(term) {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "search term must be valid UTF-8")
	}
	if term == "" {
		return &query.Result{Query: term, Results: []ingestion.Record{}}, nil
	}

	var (
		res      *query.Result
		err      error
		cacheHit bool
		status   = "disabled"
	)
	if h.cache != nil {
		res, cacheHit, err = h.cache.GetOrCompute(ctx, term, func(ctx context.Context) (*query.Result, error) {
			return h.searcher.Search(ctx, term)
		})
		status = "miss"
		if cacheHit {
			status = "hit"
		}
		if err == nil {
			w.Header().Set(CacheHeader, strings.ToUpper(status))
		}
	} else {
		res, err = h.searcher.Search(ctx, term)
	}
	if err != nil {
		log.Error("search failed", "query", term, "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
	}
	log.Info("search completed",
		"query", term,
		"total_hits", res.TotalHits,
		"cache_status", status,
		"latency_ms", elapsed.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:        analytics.EventSearch,
			Query:       strings.ToLower(term),
			TotalHits:   res.TotalHits,
			RowsScanned: res.Scanned,
			LatencyMs:   elapsed.Milliseconds(),
			CacheHit:    cacheHit,
			Timestamp:   time.Now().UTC(),
			RequestID:   logger.RequestID(ctx),
		})
	}
	return res, nil
}

// Autocomplete answers GET /api/v1/autocomplete?prefix=p&limit=n.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	prefix := strings.ToLower(r.URL.Query().Get("prefix"))
	if len(prefix) > h.opts.MaxTermLength || !utf8.ValidString(prefix) {
		apperrors.WriteHTTP(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"prefix must be valid UTF-8 of at most %d bytes", h.opts.MaxTermLength))
		return
	}
	limit := h.opts.AutocompleteLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > h.opts.MaxAutocompleteLimit {
			apperrors.WriteHTTP(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"limit must be between 1 and %d", h.opts.MaxAutocompleteLimit))
			return
		}
		limit = n
	}

	suggestions := h.completer.Complete(prefix, limit)
	if suggestions == nil {
		suggestions = []string{}
	}
	elapsed := time.Since(start)
	if h.metrics != nil {
		resultType := "hit"
		if len(suggestions) == 0 {
			resultType = "zero_result"
		}
		h.metrics.AutocompleteTotal.WithLabelValues(resultType).Inc()
		h.metrics.AutocompleteLatency.Observe(elapsed.Seconds())
	}
	if h.tracker != nil {
		h.tracker.Track(analytics.AutocompleteEvent{
			Type:        analytics.EventAutocomplete,
			Prefix:      prefix,
			Suggestions: len(suggestions),
			LatencyMs:   elapsed.Milliseconds(),
			Timestamp:   time.Now().UTC(),
			RequestID:   logger.RequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, AutocompleteResponse{Prefix: prefix, Suggestions: suggestions})
}

// CacheStats reports the query cache counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	s := h.cache.Stats()
	total := s.Hits + s.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.Hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "enabled",
		"hits":          s.Hits,
		"misses":        s.Misses,
		"errors":        s.Errors,
		"total":         total,
		"hit_rate":      hitRate,
		"generation":    s.Generation,
		"circuit_state": s.CircuitState,
	})
}

// CacheInvalidate drops every cached result.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		apperrors.WriteHTTP(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		apperrors.WriteHTTP(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
