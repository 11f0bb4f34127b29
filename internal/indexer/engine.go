// Package indexer runs the offline build jobs that turn a corpus into the
// artifacts the searcher loads: the inverted index, the vocabulary
// snapshot, the autocomplete trie and the row log.
package indexer

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/vocab"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/rowstore"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/trie"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/tracing"
)

// Job names one build step.
type Job string

const (
	JobAll   Job = "all"
	JobIndex Job = "index"
	JobVocab Job = "vocab"
	JobTrie  Job = "trie"
	JobData  Job = "data"
)

// ParseJob validates a job name.
func ParseJob(s string) (Job, error) {
	switch j := Job(strings.ToLower(strings.TrimSpace(s))); j {
	case JobAll, JobIndex, JobVocab, JobTrie, JobData:
		return j, nil
	default:
		return "", fmt.Errorf("unknown job %q (want all, index, vocab, trie or data): %w", s, apperrors.ErrInvalidInput)
	}
}

// Report summarises one job run.
type Report struct {
	Job           Job           `json:"job"`
	Rows          int           `json:"rows"`
	Tokens        int           `json:"tokens"`
	TokensWritten int           `json:"tokens_written"`
	TokensSkipped int           `json:"tokens_skipped"`
	TrieWords     int           `json:"trie_words"`
	TrieNodes     int           `json:"trie_nodes"`
	Duration      time.Duration `json:"duration"`
}

// Engine builds artifacts from one corpus source.
type Engine struct {
	src       source.Source
	tok       *tokenizer.Tokenizer
	corpus    config.CorpusConfig
	artifacts config.ArtifactsConfig
	rowOpts   rowstore.Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine returns an Engine. m may be nil.
func NewEngine(src source.Source, tok *tokenizer.Tokenizer, cfg *config.Config, m *metrics.Metrics) *Engine {
	return &Engine{
		src:       src,
		tok:       tok,
		corpus:    cfg.Corpus,
		artifacts: cfg.Artifacts,
		rowOpts: rowstore.Options{
			ChunkSize:    cfg.Search.ScanChunkSize,
			MaxFrameSize: cfg.Search.MaxFrameSize,
		},
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Run executes job and records its outcome.
func (e *Engine) Run(ctx context.Context, job Job) (*Report, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "build."+string(job))
	defer span.End()
	e.logger.Info("build job started", "job", job, "trace_id", span.TraceID)

	var (
		rep *Report
		err error
	)
	switch job {
	case JobAll:
		rep, err = e.buildAll(ctx)
	case JobIndex:
		rep, err = e.buildIndex(ctx)
	case JobVocab:
		rep, err = e.buildVocab(ctx)
	case JobTrie:
		rep, err = e.buildTrie(ctx)
	case JobData:
		rep, err = e.buildData(ctx)
	default:
		_, err = ParseJob(string(job))
	}

	elapsed := time.Since(start)
	if e.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		e.metrics.BuildJobsTotal.WithLabelValues(string(job), status).Inc()
		e.metrics.BuildDuration.WithLabelValues(string(job)).Observe(elapsed.Seconds())
	}
	if err != nil {
		e.logger.Error("build job failed", "job", job, "error", err, "elapsed_ms", elapsed.Milliseconds())
		return nil, fmt.Errorf("job %s: %w", job, err)
	}

	rep.Job = job
	rep.Duration = elapsed
	span.SetAttr("rows", rep.Rows)
	if e.metrics != nil {
		e.metrics.RowsIndexedTotal.Add(float64(rep.Rows))
		e.metrics.TokensSkippedTotal.Add(float64(rep.TokensSkipped))
	}
	e.logger.Info("build job finished",
		"job", job,
		"rows", rep.Rows,
		"tokens", rep.Tokens,
		"tokens_skipped", rep.TokensSkipped,
		"trie_words", rep.TrieWords,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return rep, nil
}

// buildAll makes one pass over the corpus, feeding the index builder and the
// row log together so both assign the same id to every row. The vocabulary
// is the index's token set and the trie is built from it.
func (e *Engine) buildAll(ctx context.Context) (*Report, error) {
	w, err := rowstore.CreateWriter(e.artifacts.RowsPath(), e.rowOpts)
	if err != nil {
		return nil, err
	}
	b := index.NewBuilder(e.tok, e.corpus.ChunkSize)

	err = e.each(ctx, func(rec ingestion.Record) error {
		want := b.Add(rec, e.corpus.TextColumns)
		got, err := w.Append(rec)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("row log assigned id %d to row %d", got, want)
		}
		return nil
	})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	rep := &Report{Rows: b.Rows()}
	if err := e.saveIndex(ctx, rep, b.Index()); err != nil {
		return nil, err
	}
	v := b.Vocabulary()
	if err := e.saveVocab(ctx, v); err != nil {
		return nil, err
	}
	if err := e.saveTrie(ctx, rep, v); err != nil {
		return nil, err
	}
	return rep, nil
}

func (e *Engine) buildIndex(ctx context.Context) (*Report, error) {
	b := index.NewBuilder(e.tok, e.corpus.ChunkSize)
	err := e.each(ctx, func(rec ingestion.Record) error {
		b.Add(rec, e.corpus.TextColumns)
		return nil
	})
	if err != nil {
		return nil, err
	}
	rep := &Report{Rows: b.Rows()}
	if err := e.saveIndex(ctx, rep, b.Index()); err != nil {
		return nil, err
	}
	return rep, nil
}

func (e *Engine) buildVocab(ctx context.Context) (*Report, error) {
	b := vocab.NewBuilder(e.tok, e.corpus.ChunkSize)
	err := e.each(ctx, func(rec ingestion.Record) error {
		b.AddRecord(rec, e.corpus.TextColumns)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.saveVocab(ctx, b.Vocabulary()); err != nil {
		return nil, err
	}
	return &Report{Rows: b.Rows(), Tokens: len(b.Vocabulary())}, nil
}

// buildTrie reads the vocabulary snapshot written by the vocab job.
func (e *Engine) buildTrie(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := vocab.Load(e.artifacts.VocabPath())
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary: %w", err)
	}
	rep := &Report{Tokens: len(v)}
	if err := e.saveTrie(ctx, rep, v); err != nil {
		return nil, err
	}
	return rep, nil
}

func (e *Engine) buildData(ctx context.Context) (*Report, error) {
	w, err := rowstore.CreateWriter(e.artifacts.RowsPath(), e.rowOpts)
	if err != nil {
		return nil, err
	}
	err = e.each(ctx, func(rec ingestion.Record) error {
		_, err := w.Append(rec)
		return err
	})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return &Report{Rows: w.Rows()}, nil
}

func (e *Engine) each(ctx context.Context, fn func(ingestion.Record) error) error {
	_, span := tracing.Start(ctx, "read_corpus")
	defer span.End()
	var n int
	chunk := max(e.corpus.ChunkSize, 1)
	err := e.src.Each(ctx, func(rec ingestion.Record) error {
		if err := fn(rec); err != nil {
			return fmt.Errorf("row %d: %w", n, err)
		}
		n++
		if n%chunk == 0 {
			e.logger.Debug("chunk processed", "rows", n)
		}
		return nil
	})
	span.SetAttr("rows", n)
	if err != nil {
		return fmt.Errorf("reading corpus: %w", err)
	}
	return nil
}

func (e *Engine) saveIndex(ctx context.Context, rep *Report, idx index.InvertedIndex) error {
	_, span := tracing.Start(ctx, "save_index")
	defer span.End()
	stats, err := segment.Save(e.artifacts.IndexPath(), idx)
	if err != nil {
		return fmt.Errorf("saving inverted index: %w", err)
	}
	rep.Tokens = idx.Tokens()
	rep.TokensWritten = stats.Written
	rep.TokensSkipped = stats.Skipped
	span.SetAttr("tokens", stats.Written)
	return nil
}

func (e *Engine) saveVocab(ctx context.Context, v vocab.Vocabulary) error {
	_, span := tracing.Start(ctx, "save_vocab")
	defer span.End()
	if err := vocab.Save(e.artifacts.VocabPath(), v); err != nil {
		return fmt.Errorf("saving vocabulary: %w", err)
	}
	span.SetAttr("tokens", len(v))
	return nil
}

// saveTrie builds, writes and reloads the trie, failing if the reloaded word
// count differs.
func (e *Engine) saveTrie(ctx context.Context, rep *Report, v vocab.Vocabulary) error {
	_, span := tracing.Start(ctx, "save_trie")
	defer span.End()
	t := trie.New()
	t.BuildFromSet(v, e.corpus.TrieBatchSize)
	if err := t.Save(e.artifacts.TriePath()); err != nil {
		return fmt.Errorf("saving trie: %w", err)
	}
	loaded, err := trie.Load(e.artifacts.TriePath())
	if err != nil {
		return fmt.Errorf("verifying trie: %w", err)
	}
	if loaded.Len() != t.Len() {
		return fmt.Errorf("verifying trie: reloaded %d words, built %d", loaded.Len(), t.Len())
	}
	rep.TrieWords = t.Len()
	rep.TrieNodes = t.NodeCount()
	span.SetAttr("words", t.Len())
	return nil
}

// StopWords resolves the configured stop-word list: the inline list, the
// lines of StopwordsFile (blank lines and # comments ignored) and, when
// enabled, the built-in defaults.
func StopWords(cfg config.CorpusConfig) ([]string, error) {
	words := append([]string(nil), cfg.Stopwords...)
	if cfg.DefaultStopwords {
		words = append(words, tokenizer.DefaultStopWords()...)
	}
	if cfg.StopwordsFile == "" {
		return words, nil
	}
	f, err := os.Open(cfg.StopwordsFile)
	if err != nil {
		return nil, apperrors.IO("open", cfg.StopwordsFile, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.IO("read", cfg.StopwordsFile, err)
	}
	return words, nil
}
