// Command searcher loads the built artifacts and serves keyword search and
// autocomplete over HTTP.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/artifacts"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/rowstore"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/trie"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Artifacts.DataDir)
	m := metrics.New(prometheus.DefaultRegisterer)

	checker := health.NewChecker(0)

	if cfg.ObjectStore.Enabled {
		bucket, err := artifacts.NewMinioBucket(ctx, cfg.ObjectStore)
		if err != nil {
			return fmt.Errorf("connecting to object store: %w", err)
		}
		if cfg.Search.FetchArtifactsOnStart {
			pub := artifacts.NewPublisher(bucket, cfg.ObjectStore.Prefix, m)
			manifest, err := pub.Fetch(ctx, artifacts.Files(cfg.Artifacts))
			if err != nil {
				return fmt.Errorf("fetching artifacts: %w", err)
			}
			slog.Info("artifacts fetched", "published_at", manifest.PublishedAt)
		}
		checker.Register("object_store", false, bucket.Ping)
	}

	start := time.Now()
	idx, err := segment.Load(cfg.Artifacts.IndexPath())
	if err != nil {
		return fmt.Errorf("loading inverted index: %w", err)
	}
	completer, err := trie.Load(cfg.Artifacts.TriePath())
	if err != nil {
		return fmt.Errorf("loading trie: %w", err)
	}
	rows := rowstore.Open(cfg.Artifacts.RowsPath(), rowstore.Options{
		ChunkSize:    cfg.Search.ScanChunkSize,
		MaxFrameSize: cfg.Search.MaxFrameSize,
	})
	if _, err := os.Stat(rows.Path()); err != nil {
		return fmt.Errorf("opening row log: %w", err)
	}
	engine := query.NewEngine(idx, rows, m)
	slog.Info("artifacts loaded",
		"tokens", engine.Tokens(),
		"trie_words", completer.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	checker.Register("artifacts", true, func(ctx context.Context) error {
		_, err := os.Stat(rows.Path())
		return err
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			generation, err := cacheGeneration(cfg.Artifacts.IndexPath())
			if err != nil {
				return err
			}
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, generation, m)
			checker.Register("redis", false, redisClient.Ping)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL, "generation", generation)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var tracker handler.Tracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.AnalyticsTopic, false)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorConfig{}, m)
		g.Go(func() error {
			collector.Run(gctx)
			return nil
		})
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.AnalyticsTopic)
	}

	h := handler.New(engine, completer, queryCache, tracker, m, handler.Options{
		MaxTermLength:        cfg.Search.MaxTermLength,
		AutocompleteLimit:    cfg.Search.AutocompleteLimit,
		MaxAutocompleteLimit: cfg.Search.MaxAutocompleteLimit,
	})
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins)),
		middleware.Metrics(m, handler.Routes...),
	}
	if cfg.Search.RateLimitPerSecond > 0 {
		limiter := middleware.NewRateLimiter(cfg.Search.RateLimitPerSecond, cfg.Search.RateLimitBurst, 0)
		mws = append(mws, middleware.RateLimit(limiter, m))
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := limiter.Sweep(); n > 0 {
						slog.Debug("idle rate limit buckets dropped", "count", n)
					}
				}
			}
		})
	}
	mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout), middleware.Gzip)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serve(gctx, g, server, cfg.Server.ShutdownTimeout)

	if cfg.Metrics.Enabled {
		serve(gctx, g, metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer), cfg.Server.ShutdownTimeout)
	}

	return g.Wait()
}

// serve runs srv in g and shuts it down when ctx ends.
func serve(ctx context.Context, g *errgroup.Group, srv *http.Server, shutdownTimeout time.Duration) {
	g.Go(func() error {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "addr", srv.Addr, "error", err)
		}
		return nil
	})
}

// cacheGeneration ties cached results to one build of the index, so a
// rebuilt index never serves results cached from the previous one.
func cacheGeneration(indexPath string) (string, error) {
	info, err := os.Stat(indexPath)
	if err != nil {
		return "", fmt.Errorf("stat inverted index: %w", err)
	}
	return fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()), nil
}
