package source

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
)

const jobsCSV = "\ufefftitle,company_name,salary,remote,notes\n" +
	"Data Engineer,Acme,120000,true,\n" +
	"\n" +
	"\"Nurse, RN\",St. Mary,55.5,false,\"night\nshift\"\n" +
	"Welder,Forge,00123456789012345678,FALSE,x\n" +
	"Driver,Uber\n"

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, src Source) []ingestion.Record {
	t.Helper()
	var got []ingestion.Record
	require.NoError(t, src.Each(context.Background(), func(rec ingestion.Record) error {
		got = append(got, rec)
		return nil
	}))
	return got
}

func TestCSVTypedCells(t *testing.T) {
	got := collect(t, NewCSV(writeCSV(t, jobsCSV)))
	require.Len(t, got, 4)

	assert.Equal(t, ingestion.Record{
		{Name: "title", Value: "Data Engineer"},
		{Name: "company_name", Value: "Acme"},
		{Name: "salary", Value: json.Number("120000")},
		{Name: "remote", Value: true},
		{Name: "notes", Value: nil},
	}, got[0])

	notes, _ := got[1].Text("notes")
	assert.Equal(t, "night\nshift", notes)
	salary, _ := got[1].Get("salary")
	assert.Equal(t, json.Number("55.5"), salary)

	salary, _ = got[2].Get("salary")
	assert.Equal(t, "00123456789012345678", salary)
	remote, _ := got[2].Get("remote")
	assert.Equal(t, false, remote)

	assert.Equal(t, ingestion.Record{
		{Name: "title", Value: "Driver"},
		{Name: "company_name", Value: "Uber"},
	}, got[3])
}

func TestCSVRepeatedHeaderLastCellWins(t *testing.T) {
	got := collect(t, NewCSV(writeCSV(t, "title,salary,title\nData Engineer,100,Senior Data Engineer\n")))
	require.Len(t, got, 1)
	assert.Equal(t, ingestion.Record{
		{Name: "title", Value: "Senior Data Engineer"},
		{Name: "salary", Value: json.Number("100")},
	}, got[0])

	out, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Senior Data Engineer","salary":100}`, string(out))
	assert.Equal(t, []string{"title"}, duplicateColumns([]string{"title", "salary", "title", "title"}))
	assert.Empty(t, duplicateColumns([]string{"title", "salary"}))
}

func TestCSVOrderIsStable(t *testing.T) {
	src := NewCSV(writeCSV(t, jobsCSV))
	assert.Equal(t, collect(t, src), collect(t, src))
}

func TestCSVEmptyFile(t *testing.T) {
	assert.Empty(t, collect(t, NewCSV(writeCSV(t, ""))))
	assert.Empty(t, collect(t, NewCSV(writeCSV(t, "title,desc\n"))))
}

func TestCSVMissingFile(t *testing.T) {
	err := NewCSV(filepath.Join(t.TempDir(), "none.csv")).Each(context.Background(), func(ingestion.Record) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	var n int
	err := NewCSV(writeCSV(t, jobsCSV)).Each(context.Background(), func(ingestion.Record) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestCSVHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewCSV(writeCSV(t, jobsCSV)).Each(ctx, func(ingestion.Record) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTypedCell(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"true", true},
		{"False", false},
		{"42", json.Number("42")},
		{"-7", json.Number("-7")},
		{"3.", json.Number("3")},
		{".5", json.Number("0.5")},
		{"1e3", json.Number("1000")},
		{"007", json.Number("7")},
		{"9007199254740993", "9007199254740993"},
		{"0x1F", "0x1F"},
		{"NaN", "NaN"},
		{"1_000", "1_000"},
		{"12 months", "12 months"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, typedCell(tt.in))
		})
	}
}

func TestSQLValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Nil(t, sqlValue(nil))
	assert.Equal(t, "remote", sqlValue([]byte("remote")))
	assert.Equal(t, json.Number("12"), sqlValue(int64(12)))
	assert.Equal(t, json.Number("2.5"), sqlValue(2.5))
	assert.Equal(t, true, sqlValue(true))
	assert.Equal(t, "2024-03-01T12:00:00Z", sqlValue(ts))
}

func TestNew(t *testing.T) {
	src, err := New(config.CorpusConfig{Source: config.SourceCSV, CSVPath: "jobs.csv"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, src)

	_, err = New(config.CorpusConfig{Source: config.SourcePostgres, Query: "SELECT 1"}, nil)
	assert.Error(t, err)

	_, err = New(config.CorpusConfig{Source: "parquet"}, nil)
	assert.Error(t, err)
}

func TestRecords(t *testing.T) {
	rows := Records{{{Name: "title", Value: "a"}}, {{Name: "title", Value: "b"}}}
	assert.Equal(t, []ingestion.Record(rows), collect(t, rows))
}
