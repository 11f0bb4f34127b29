package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Stats collects per-request outcomes from every worker.
type Stats struct {
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies map[string][]time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make(map[string][]time.Duration),
		codes:     make(map[int]int64),
	}
}

// Record adds one request against endpoint. A transport error counts as a
// failure with status 0 and no latency sample.
func (s *Stats) Record(endpoint string, d time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.succeeded.Add(1)
	} else {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.mu.Lock()
	s.latencies[endpoint] = append(s.latencies[endpoint], d)
	s.codes[status]++
	s.mu.Unlock()
}

// Summary is the latency distribution of one endpoint.
type Summary struct {
	Count  int
	Min    time.Duration
	Avg    time.Duration
	P50    time.Duration
	P90    time.Duration
	P99    time.Duration
	Max    time.Duration
	StdDev time.Duration
}

func summarize(samples []time.Duration) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg := sum / time.Duration(len(sorted))
	var sq float64
	for _, l := range sorted {
		diff := float64(l - avg)
		sq += diff * diff
	}
	return Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Avg:    avg,
		P50:    percentile(sorted, 50),
		P90:    percentile(sorted, 90),
		P99:    percentile(sorted, 99),
		Max:    sorted[len(sorted)-1],
		StdDev: time.Duration(math.Sqrt(sq / float64(len(sorted)))),
	}
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// Report writes the run summary to w.
func (s *Stats) Report(w io.Writer, elapsed time.Duration) {
	total := s.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", s.succeeded.Load())
	fmt.Fprintf(w, "Errors:          %d\n", s.failed.Load())
	fmt.Fprintf(w, "Cache Hits:      %d\n", s.cacheHits.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.failed.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/elapsed.Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	endpoints := make([]string, 0, len(s.latencies))
	for ep := range s.latencies {
		endpoints = append(endpoints, ep)
	}
	slices.Sort(endpoints)
	for _, ep := range endpoints {
		sum := summarize(s.latencies[ep])
		fmt.Fprintf(w, "\n=== Latency: %s (%d) ===\n", ep, sum.Count)
		fmt.Fprintf(w, "Min:    %s\n", sum.Min)
		fmt.Fprintf(w, "Avg:    %s\n", sum.Avg)
		fmt.Fprintf(w, "P50:    %s\n", sum.P50)
		fmt.Fprintf(w, "P90:    %s\n", sum.P90)
		fmt.Fprintf(w, "P99:    %s\n", sum.P99)
		fmt.Fprintf(w, "Max:    %s\n", sum.Max)
		fmt.Fprintf(w, "StdDev: %s\n", sum.StdDev)
	}

	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	fmt.Fprintln(w, "\n=== Status Codes ===")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.codes[code])
	}
}
