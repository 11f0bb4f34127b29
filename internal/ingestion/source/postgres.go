package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/postgres"
)

// Postgres runs a configured query inside one read-only repeatable-read
// transaction. The query must carry its own ORDER BY so that row ids are
// stable across builds.
type Postgres struct {
	db     *postgres.Client
	query  string
	logger *slog.Logger
}

// NewPostgres returns a Postgres source.
func NewPostgres(db *postgres.Client, query string) *Postgres {
	return &Postgres{
		db:     db,
		query:  query,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

// Each implements Source.
func (s *Postgres) Each(ctx context.Context, fn func(ingestion.Record) error) error {
	return s.db.InTx(ctx, postgres.ReadOnlySnapshot, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.query)
		if err != nil {
			return fmt.Errorf("querying corpus: %w", err)
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("reading corpus columns: %w", err)
		}
		if dup := duplicateColumns(columns); len(dup) > 0 {
			s.logger.Warn("corpus query repeats column names, later columns win", "columns", dup)
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		var n int
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("scanning corpus row %d: %w", n, err)
			}
			rec := make(ingestion.Record, 0, len(columns))
			for i, name := range columns {
				rec.Set(name, sqlValue(values[i]))
			}
			if err := fn(rec); err != nil {
				return err
			}
			n++
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating corpus rows: %w", err)
		}
		s.logger.Debug("corpus query read", "rows", n, "columns", len(columns))
		return nil
	})
}

// sqlValue maps a driver value onto the row value types.
func sqlValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return json.Number(strconv.FormatInt(x, 10))
	case float64:
		return number(x)
	case bool:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
