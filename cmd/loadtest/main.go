// Command loadtest drives a running searcher with a mix of search and
// autocomplete requests and prints latency and status summaries.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:9001] [-concurrency 10] [-duration 30s] [-rps 0] [-terms words.txt]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var defaultTerms = []string{
	"engineer", "data", "analyst", "remote", "python", "sql",
	"manager", "senior", "developer", "scientist", "intern", "tableau",
}

type config struct {
	baseURL      string
	concurrency  int
	duration     time.Duration
	rps          float64
	autocomplete float64
	terms        []string
}

func main() {
	var cfg config
	termsFile := flag.String("terms", "", "file with one search term per line")
	flag.StringVar(&cfg.baseURL, "url", "http://localhost:9001", "base URL of the searcher")
	flag.IntVar(&cfg.concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&cfg.duration, "duration", 30*time.Second, "test duration")
	flag.Float64Var(&cfg.rps, "rps", 0, "total request rate cap, 0 for unlimited")
	flag.Float64Var(&cfg.autocomplete, "autocomplete", 0.3, "fraction of requests sent to autocomplete")
	flag.Parse()

	cfg.terms = defaultTerms
	if *termsFile != "" {
		terms, err := readTerms(*termsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading terms: %v\n", err)
			os.Exit(1)
		}
		cfg.terms = terms
	}

	fmt.Println("=== Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.baseURL)
	fmt.Printf("Concurrency: %d\n", cfg.concurrency)
	fmt.Printf("Duration:    %s\n", cfg.duration)
	fmt.Printf("Terms:       %d unique\n\n", len(cfg.terms))

	start := time.Now()
	stats := run(cfg)
	stats.Report(os.Stdout, time.Since(start))
	if stats.total.Load() == 0 {
		fmt.Println("\nWARNING: No requests completed. Is the searcher running?")
		os.Exit(1)
	}
}

func readTerms(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var terms []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if t := strings.TrimSpace(sc.Text()); t != "" {
			terms = append(terms, t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%s has no terms", path)
	}
	return terms, nil
}

func run(cfg config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.rps), max(1, cfg.concurrency))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	var g errgroup.Group
	for w := 0; w < cfg.concurrency; w++ {
		g.Go(func() error {
			for i := w; ; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
				endpoint, target := pick(cfg, i)
				start := time.Now()
				status, hit, err := get(ctx, client, target)
				if ctx.Err() != nil {
					return nil
				}
				stats.Record(endpoint, time.Since(start), status, hit, err)
			}
		})
	}
	_ = g.Wait()
	return stats
}

// pick spreads requests deterministically over terms and endpoints.
func pick(cfg config, i int) (endpoint, target string) {
	term := cfg.terms[i%len(cfg.terms)]
	if cfg.autocomplete > 0 && float64(i%100) < cfg.autocomplete*100 {
		prefix := term[:min(len(term), 3)]
		return "autocomplete", fmt.Sprintf("%s/api/v1/autocomplete?prefix=%s", cfg.baseURL, url.QueryEscape(prefix))
	}
	return "search", fmt.Sprintf("%s/api/v1/search?q=%s", cfg.baseURL, url.QueryEscape(term))
}

func get(ctx context.Context, client *http.Client, target string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, resp.Header.Get("X-Cache") == "HIT", nil
}
