// Command analytics consumes search and autocomplete events from Kafka,
// aggregates them in memory and serves the aggregate over HTTP. When
// PostgreSQL is reachable the aggregate is snapshotted periodically and
// restored on start.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 9002]
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
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/postgres"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 9002, "HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *port); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config, port int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting analytics service", "port", port, "topic", cfg.Kafka.AnalyticsTopic)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	agg := analytics.NewAggregator()
	checker := health.NewChecker(0)
	g, gctx := errgroup.WithContext(ctx)

	var snapshots analytics.SnapshotLister
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		latest, err := store.LatestSnapshot(ctx)
		if err != nil {
			return err
		}
		if latest != nil {
			agg.Seed(latest.Stats)
			slog.Info("aggregate restored", "captured_at", latest.CapturedAt, "searches", latest.Stats.TotalSearches)
		}
		snapshots = store
		checker.Register("postgres", false, db.Ping)
		g.Go(func() error {
			return store.Run(gctx, agg, snapshotInterval)
		})
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.AnalyticsTopic, analytics.HandleEvent(agg, m))
	g.Go(func() error {
		return consumer.Run(gctx)
	})

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(reg))

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins)),
			middleware.Metrics(m, "/api/v1/analytics", "/api/v1/analytics/snapshots", "/health/live", "/health/ready", "/metrics"),
			middleware.Gzip,
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
