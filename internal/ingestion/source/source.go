// Package source reads corpus rows, in a stable order, from a CSV file or a
// PostgreSQL query.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/postgres"
)

// Source yields every row of a corpus. Each calls fn once per row in the
// same order on every run and stops at the first error fn returns.
type Source interface {
	Each(ctx context.Context, fn func(ingestion.Record) error) error
}

// Records is an in-memory source.
type Records []ingestion.Record

// Each implements Source.
func (r Records) Each(ctx context.Context, fn func(ingestion.Record) error) error {
	for _, rec := range r {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// New returns the source selected by cfg. db is only used, and must be
// non-nil, for the postgres source.
func New(cfg config.CorpusConfig, db *postgres.Client) (Source, error) {
	switch cfg.Source {
	case config.SourceCSV:
		return NewCSV(cfg.CSVPath), nil
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres source requires a database connection")
		}
		return NewPostgres(db, cfg.Query), nil
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}
}

var numberPattern = regexp.MustCompile(`^\s*-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?\s*$`)

const maxSafeInteger = 1<<53 - 1

// typedCell converts a raw text cell: "" is null, true/false are booleans,
// and decimal numbers within the exactly representable integer range become
// json.Number. Everything else stays a string.
func typedCell(s string) any {
	switch s {
	case "":
		return nil
	case "true", "TRUE", "True":
		return true
	case "false", "FALSE", "False":
		return false
	}
	if !numberPattern.MatchString(s) {
		return s
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.Abs(f) > maxSafeInteger {
		return s
	}
	return number(f)
}

func number(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}
