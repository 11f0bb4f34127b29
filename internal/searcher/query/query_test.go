package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/rowstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/metrics"
)

var textColumns = []string{"title", "desc"}

func jobRows() []ingestion.Record {
	return []ingestion.Record{
		{{Name: "title", Value: "Data Engineer"}, {Name: "desc", Value: "Build data pipelines"}},
		{{Name: "title", Value: "Data Scientist"}, {Name: "desc", Value: "Analyze data"}},
	}
}

// buildCorpus indexes rows and writes them to a row log, returning both.
func buildCorpus(t testing.TB, rows []ingestion.Record) (index.InvertedIndex, *rowstore.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	w, err := rowstore.CreateWriter(path, rowstore.Options{})
	require.NoError(t, err)

	b := index.NewBuilder(tokenizer.New(tokenizer.DefaultStopWords()), 0)
	for _, rec := range rows {
		want := b.Add(rec, textColumns)
		got, err := w.Append(rec)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.NoError(t, w.Close())
	return b.Index(), rowstore.Open(path, rowstore.Options{})
}

func TestSearchEndToEnd(t *testing.T) {
	rows := jobRows()
	idx, store := buildCorpus(t, rows)
	ctx := context.Background()

	assert.Equal(t, index.PostingList{0, 1}, idx.Lookup("data"))
	assert.Equal(t, index.PostingList{0}, idx.Lookup("engineer"))

	got, err := Search(ctx, "data", idx, store)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	got, err = Search(ctx, "scientist", idx, store)
	require.NoError(t, err)
	assert.Equal(t, []ingestion.Record{rows[1]}, got)

	got, err = Search(ctx, "missing", idx, store)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchLowercasesTerm(t *testing.T) {
	idx, store := buildCorpus(t, jobRows())

	got, err := Search(context.Background(), "ENGINEER", idx, store)
	require.NoError(t, err)
	require.Len(t, got, 1)
	title, _ := got[0].Text("title")
	assert.Equal(t, "Data Engineer", title)
}

func TestEmptyTermNeverOpensLog(t *testing.T) {
	idx, _ := buildCorpus(t, jobRows())
	absent := rowstore.Open(filepath.Join(t.TempDir(), "absent.bin"), rowstore.Options{})

	got, err := Search(context.Background(), "", idx, absent)
	require.NoError(t, err)
	assert.Equal(t, []ingestion.Record{}, got)

	got, err = Search(context.Background(), "unknown", idx, absent)
	require.NoError(t, err)
	assert.Equal(t, []ingestion.Record{}, got)
}

func TestScanStopsAtGreatestPosting(t *testing.T) {
	rows := make([]ingestion.Record, 0, 100)
	for i := range 100 {
		title := fmt.Sprintf("role%d", i)
		if i == 3 || i == 10 {
			title += " welder"
		}
		rows = append(rows, ingestion.Record{{Name: "title", Value: title}})
	}
	idx, store := buildCorpus(t, rows)

	res, err := Execute(context.Background(), "welder", idx, store)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, 11, res.Scanned, "rows 0..10")
	assert.Equal(t, []ingestion.Record{rows[3], rows[10]}, res.Results)
}

func TestPostingsBeyondLogAreDropped(t *testing.T) {
	_, store := buildCorpus(t, jobRows())
	idx := index.InvertedIndex{"ghost": {1, 7, 9}}

	res, err := Execute(context.Background(), "ghost", idx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalHits)
	assert.Equal(t, 2, res.Missing)
	assert.Equal(t, []ingestion.Record{jobRows()[1]}, res.Results)
}

func TestScanErrorAbortsQuery(t *testing.T) {
	idx, store := buildCorpus(t, jobRows())
	f, err := os.OpenFile(store.Path(), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{9, 9})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	idx["tail"] = index.PostingList{5}
	got, err := Search(context.Background(), "tail", idx, store)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrCorruptFormat)
}

func TestCancelledQuery(t *testing.T) {
	idx, store := buildCorpus(t, jobRows())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Search(ctx, "data", idx, store)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineRecordsMetrics(t *testing.T) {
	idx, store := buildCorpus(t, jobRows())
	m := metrics.New(prometheus.NewRegistry())
	e := NewEngine(idx, store, m)

	res, err := e.Search(context.Background(), "data")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalHits)

	_, err = e.Search(context.Background(), "nothing")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchRowsScanned))
}
