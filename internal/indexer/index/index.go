// Package index builds the token to row inverted index of a corpus.
//
// Postings are accumulated in roaring bitmaps, so every list comes out
// ascending and duplicate-free regardless of how often a token repeats in a
// row or across columns.
package index

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/vocab"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
)

// PostingList is an ascending, duplicate-free list of row ids.
type PostingList []ingestion.RowID

// Max returns the greatest row id. ok is false for an empty list.
func (p PostingList) Max() (id ingestion.RowID, ok bool) {
	if len(p) == 0 {
		return 0, false
	}
	return p[len(p)-1], true
}

// InvertedIndex maps a token to the rows containing it. A loaded index is
// never mutated and may be read from many goroutines.
type InvertedIndex map[string]PostingList

// Lookup returns the postings for token, or nil when it is absent.
func (idx InvertedIndex) Lookup(token string) PostingList {
	return idx[token]
}

// Tokens returns the number of distinct tokens.
func (idx InvertedIndex) Tokens() int {
	return len(idx)
}

// Builder assigns row ids in the order rows are added and records which rows
// contain each token.
type Builder struct {
	tok       vocab.Tokenizer
	chunkSize int
	postings  map[string]*roaring.Bitmap
	next      ingestion.RowID
	logger    *slog.Logger
}

// NewBuilder returns an empty Builder. A non-positive chunkSize selects
// vocab.DefaultChunkSize.
func NewBuilder(tok vocab.Tokenizer, chunkSize int) *Builder {
	if chunkSize <= 0 {
		chunkSize = vocab.DefaultChunkSize
	}
	return &Builder{
		tok:       tok,
		chunkSize: chunkSize,
		postings:  make(map[string]*roaring.Bitmap),
		logger:    slog.Default().With("component", "index-builder"),
	}
}

// Add indexes one row and returns the id assigned to it.
func (b *Builder) Add(rec ingestion.Record, textColumns []string) ingestion.RowID {
	id := b.next
	b.next++
	for _, col := range textColumns {
		text, ok := rec.Text(col)
		if !ok {
			continue
		}
		for _, token := range b.tok.Tokenize(text) {
			bm, exists := b.postings[token]
			if !exists {
				bm = roaring.New()
				b.postings[token] = bm
			}
			bm.Add(uint32(id))
		}
	}
	return id
}

// Build indexes rows in chunks and returns the vocabulary and the index of
// everything added so far.
func (b *Builder) Build(rows []ingestion.Record, textColumns []string) (vocab.Vocabulary, InvertedIndex) {
	for start := 0; start < len(rows); start += b.chunkSize {
		end := min(start+b.chunkSize, len(rows))
		for _, rec := range rows[start:end] {
			b.Add(rec, textColumns)
		}
		b.logger.Debug("chunk indexed", "rows", end, "tokens", len(b.postings))
	}
	return b.Vocabulary(), b.Index()
}

// Rows returns how many rows have been added.
func (b *Builder) Rows() int {
	return int(b.next)
}

// Vocabulary returns the distinct tokens seen so far.
func (b *Builder) Vocabulary() vocab.Vocabulary {
	v := make(vocab.Vocabulary, len(b.postings))
	for token := range b.postings {
		v.Add(token)
	}
	return v
}

// Index materialises the postings accumulated so far.
func (b *Builder) Index() InvertedIndex {
	idx := make(InvertedIndex, len(b.postings))
	for token, bm := range b.postings {
		ids := bm.ToArray()
		list := make(PostingList, len(ids))
		for i, id := range ids {
			list[i] = ingestion.RowID(id)
		}
		idx[token] = list
	}
	return idx
}
