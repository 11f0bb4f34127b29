package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
)

// CSV reads a header-first CSV file. Blank lines are skipped, short rows
// keep only the columns they have, and cells beyond the header are dropped.
type CSV struct {
	path   string
	logger *slog.Logger
}

// NewCSV returns a CSV source for path.
func NewCSV(path string) *CSV {
	return &CSV{
		path:   path,
		logger: slog.Default().With("component", "csv-source", "path", path),
	}
}

// Each implements Source.
func (s *CSV) Each(ctx context.Context, fn func(ingestion.Record) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return apperrors.IO("open", s.path, err)
	}
	defer f.Close()
	return s.read(ctx, f, fn)
}

func (s *CSV) read(ctx context.Context, r io.Reader, fn func(ingestion.Record) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading csv header: %w", err)
	}
	columns := make([]string, len(header))
	copy(columns, header)
	if len(columns) > 0 {
		columns[0] = strings.TrimPrefix(columns[0], "\ufeff")
	}
	if dup := duplicateColumns(columns); len(dup) > 0 {
		s.logger.Warn("csv header repeats column names, later cells win", "columns", dup)
	}

	var rows, ragged int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading csv row %d: %w", rows+1, err)
		}
		if len(cells) != len(columns) {
			ragged++
		}
		n := min(len(cells), len(columns))
		rec := make(ingestion.Record, 0, n)
		for i := range n {
			rec.Set(columns[i], typedCell(cells[i]))
		}
		if err := fn(rec); err != nil {
			return err
		}
		rows++
	}
	if ragged > 0 {
		s.logger.Warn("rows with a cell count different from the header", "rows", ragged)
	}
	s.logger.Debug("csv read", "rows", rows, "columns", len(columns))
	return nil
}

func duplicateColumns(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	var dup []string
	for _, c := range columns {
		if repeated, ok := seen[c]; ok {
			if !repeated {
				dup = append(dup, c)
				seen[c] = true
			}
			continue
		}
		seen[c] = false
	}
	return dup
}
