package index

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
)

var textColumns = []string{"title", "desc"}

func jobRows() []ingestion.Record {
	return []ingestion.Record{
		{{Name: "title", Value: "Data Engineer"}, {Name: "desc", Value: "Build data pipelines"}},
		{{Name: "title", Value: "Data Scientist"}, {Name: "desc", Value: "Analyze data"}},
	}
}

func TestBuildPostings(t *testing.T) {
	b := NewBuilder(tokenizer.New(tokenizer.DefaultStopWords()), 0)
	v, idx := b.Build(jobRows(), textColumns)

	assert.Equal(t, PostingList{0, 1}, idx.Lookup("data"))
	assert.Equal(t, PostingList{0}, idx.Lookup("engineer"))
	assert.Equal(t, PostingList{1}, idx.Lookup("scientist"))
	assert.Nil(t, idx.Lookup("missing"))
	assert.Equal(t, len(v), idx.Tokens())
	assert.Equal(t, 2, b.Rows())
}

func TestAddReturnsSequentialRowIDs(t *testing.T) {
	b := NewBuilder(tokenizer.New(nil), 0)
	for i, rec := range jobRows() {
		assert.Equal(t, ingestion.RowID(i), b.Add(rec, textColumns))
	}
}

func TestPostingsAreAscendingAndUnique(t *testing.T) {
	b := NewBuilder(tokenizer.New(nil), 7)
	rows := make([]ingestion.Record, 0, 100)
	for i := range 100 {
		rows = append(rows, ingestion.Record{
			{Name: "title", Value: fmt.Sprintf("go go go w%d", i%5)},
			{Name: "desc", Value: "go"},
		})
	}
	_, idx := b.Build(rows, textColumns)

	for token, list := range idx {
		assert.True(t, slices.IsSorted(list), token)
		assert.Equal(t, len(list), len(slices.Compact(slices.Clone(list))), token)
	}
	require.Len(t, idx.Lookup("go"), 100)
	assert.Len(t, idx.Lookup("w3"), 20)
}

// A row id belongs to index[t] exactly when the row contains t in one of the
// configured text columns.
func TestMembershipMatchesRowContents(t *testing.T) {
	tok := tokenizer.New(tokenizer.DefaultStopWords())
	rows := []ingestion.Record{
		{{Name: "title", Value: "Nurse"}, {Name: "desc", Value: "night shift nurse"}, {Name: "note", Value: "urgent"}},
		{{Name: "title", Value: "Welder"}, {Name: "desc", Value: "day shift"}},
		{{Name: "title", Value: "Night Porter"}},
	}
	_, idx := NewBuilder(tok, 0).Build(rows, textColumns)

	for token, list := range idx {
		for r, rec := range rows {
			var has bool
			for _, col := range textColumns {
				if text, ok := rec.Text(col); ok && slices.Contains(tok.Tokenize(text), token) {
					has = true
				}
			}
			assert.Equal(t, has, slices.Contains(list, ingestion.RowID(r)), "token %q row %d", token, r)
		}
	}
	assert.Nil(t, idx.Lookup("urgent"), "unconfigured column")
}

func TestPostingListMax(t *testing.T) {
	_, ok := PostingList(nil).Max()
	assert.False(t, ok)

	m, ok := PostingList{1, 4, 9}.Max()
	assert.True(t, ok)
	assert.Equal(t, ingestion.RowID(9), m)
}
