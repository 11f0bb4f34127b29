// Package vocab builds the set of distinct tokens found in a corpus and
// persists it as a JSON array snapshot.
package vocab

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/fsutil"
)

// DefaultChunkSize is the number of rows processed per chunk.
const DefaultChunkSize = 1000

// Tokenizer turns raw text into tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Vocabulary is a set of tokens.
type Vocabulary map[string]struct{}

// Add inserts token into the set.
func (v Vocabulary) Add(token string) { v[token] = struct{}{} }

// Contains reports whether token is in the set.
func (v Vocabulary) Contains(token string) bool {
	_, ok := v[token]
	return ok
}

// Sorted returns the tokens in ascending byte order.
func (v Vocabulary) Sorted() []string {
	out := make([]string, 0, len(v))
	for w := range v {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Builder accumulates the vocabulary of the rows it is given.
type Builder struct {
	tok       Tokenizer
	chunkSize int
	vocab     Vocabulary
	rows      int
	logger    *slog.Logger
}

// NewBuilder returns a Builder. A non-positive chunkSize selects
// DefaultChunkSize.
func NewBuilder(tok Tokenizer, chunkSize int) *Builder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Builder{
		tok:       tok,
		chunkSize: chunkSize,
		vocab:     make(Vocabulary),
		logger:    slog.Default().With("component", "vocab-builder"),
	}
}

// Add tokenizes the string values of textColumns in every row. Columns that
// are missing or hold numbers are skipped.
func (b *Builder) Add(rows []ingestion.Record, textColumns []string) {
	for start := 0; start < len(rows); start += b.chunkSize {
		end := min(start+b.chunkSize, len(rows))
		for _, rec := range rows[start:end] {
			b.AddRecord(rec, textColumns)
		}
		b.logger.Debug("chunk processed", "rows", end, "tokens", len(b.vocab))
	}
}

// AddRecord tokenizes a single row.
func (b *Builder) AddRecord(rec ingestion.Record, textColumns []string) {
	for _, col := range textColumns {
		text, ok := rec.Text(col)
		if !ok {
			continue
		}
		for _, token := range b.tok.Tokenize(text) {
			b.vocab.Add(token)
		}
	}
	b.rows++
}

// Vocabulary returns the accumulated set. The builder keeps ownership; callers
// must not mutate it while still adding rows.
func (b *Builder) Vocabulary() Vocabulary {
	return b.vocab
}

// Rows returns how many rows have been processed.
func (b *Builder) Rows() int {
	return b.rows
}

// Encode writes the vocabulary as a sorted JSON array.
func Encode(w io.Writer, v Vocabulary) error {
	if err := json.NewEncoder(w).Encode(v.Sorted()); err != nil {
		return fmt.Errorf("encoding vocabulary: %w", err)
	}
	return nil
}

// Decode parses a JSON array snapshot.
func Decode(data []byte) (Vocabulary, error) {
	var words []string
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, apperrors.Corrupt("vocabulary", 0, "%v", err)
	}
	v := make(Vocabulary, len(words))
	for _, w := range words {
		v.Add(w)
	}
	return v, nil
}

// Save writes the snapshot atomically.
func Save(path string, v Vocabulary) error {
	return fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		return Encode(w, v)
	})
}

// Load reads a snapshot written by Save.
func Load(path string) (Vocabulary, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary %s: %w", path, err)
	}
	return v, nil
}
