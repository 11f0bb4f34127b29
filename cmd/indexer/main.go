// Command indexer runs one offline build job over the configured corpus and
// writes the artifacts the searcher loads.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-job all|index|vocab|trie|data] [-publish]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/artifacts"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	jobName := flag.String("job", "all", "build job: all, index, vocab, trie or data")
	publish := flag.Bool("publish", false, "upload the artifacts to the object store after the job")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	job, err := indexer.ParseJob(*jobName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := run(ctx, cfg, job, *publish)
	if err != nil {
		slog.Error("indexer failed", "job", job, "error", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(rep, "", "  ")
	fmt.Println(string(out))
}

func run(ctx context.Context, cfg *config.Config, job indexer.Job, publish bool) (*indexer.Report, error) {
	ctx, span := tracing.Start(ctx, "indexer")
	defer span.End()
	m := metrics.New(prometheus.NewRegistry())

	var db *postgres.Client
	if cfg.Corpus.Source == config.SourcePostgres {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to corpus database: %w", err)
		}
		defer db.Close()
	}
	src, err := source.New(cfg.Corpus, db)
	if err != nil {
		return nil, err
	}
	stopWords, err := indexer.StopWords(cfg.Corpus)
	if err != nil {
		return nil, err
	}
	slog.Info("starting indexer",
		"job", job,
		"source", cfg.Corpus.Source,
		"text_columns", cfg.Corpus.TextColumns,
		"stopwords", len(stopWords),
		"data_dir", cfg.Artifacts.DataDir,
	)

	engine := indexer.NewEngine(src, tokenizer.New(stopWords), cfg, m)
	rep, err := engine.Run(ctx, job)
	if err != nil {
		return nil, err
	}

	if !publish {
		return rep, nil
	}
	if !cfg.ObjectStore.Enabled {
		return nil, fmt.Errorf("-publish needs objectStore.enabled")
	}
	bucket, err := artifacts.NewMinioBucket(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, err
	}
	manifest, err := artifacts.NewPublisher(bucket, cfg.ObjectStore.Prefix, m).Publish(ctx, artifacts.Files(cfg.Artifacts))
	if err != nil {
		return nil, err
	}
	slog.Info("artifacts published", "bucket", cfg.ObjectStore.Bucket, "files", len(manifest.Files))
	return rep, nil
}
