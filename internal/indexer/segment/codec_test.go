package segment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
)

func sampleIndex() index.InvertedIndex {
	return index.InvertedIndex{
		"data":      {0, 1},
		"engineer":  {0},
		"scientist": {1},
		"zürich":    {4, 9, 4000000000},
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	stats, err := Encode(&buf, sampleIndex())
	require.NoError(t, err)
	assert.Equal(t, EncodeStats{Written: 4}, stats)

	got, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, sampleIndex(), got)
}

func TestEncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, index.InvertedIndex{"ab": {3}})
	require.NoError(t, err)

	want := []byte{
		1, 0, 0, 0, // version
		1, 0, 0, 0, // wordCount
		2, 0, 0, 0, 'a', 'b',
		1, 0, 0, 0, // postingCount
		3, 0, 0, 0,
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestEncodeIsDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	_, err := Encode(&a, sampleIndex())
	require.NoError(t, err)
	_, err = Encode(&b, sampleIndex())
	require.NoError(t, err)
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestOversizedTokenSkipped(t *testing.T) {
	long := strings.Repeat("x", MaxTokenLength+1)
	edge := strings.Repeat("y", MaxTokenLength)
	idx := index.InvertedIndex{long: {0}, edge: {1}, "ok": {2}}

	path := filepath.Join(t.TempDir(), "inverted-index.bin")
	stats, err := Save(path, idx)
	require.NoError(t, err)
	assert.Equal(t, EncodeStats{Written: 2, Skipped: 1}, stats)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, index.InvertedIndex{edge: {1}, "ok": {2}}, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[4:8]), "word count matches written entries")
}

func TestEmptyIndex(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, index.InvertedIndex{})
	require.NoError(t, err)
	assert.Len(t, buf.Bytes(), HeaderSize)

	got, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeWordCountMismatchIsNotFatal(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, sampleIndex())
	require.NoError(t, err)
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[4:8], 99)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestDecodeCorrupt(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, index.InvertedIndex{"data": {0, 1}})
	require.NoError(t, err)
	valid := buf.Bytes()

	withTokenLen := func(n uint32) []byte {
		b := bytes.Clone(valid)
		binary.LittleEndian.PutUint32(b[8:12], n)
		return b
	}
	badVersion := bytes.Clone(valid)
	binary.LittleEndian.PutUint32(badVersion[0:4], 2)
	withPostings := func(a, b uint32) []byte {
		out := bytes.Clone(valid)
		binary.LittleEndian.PutUint32(out[20:24], a)
		binary.LittleEndian.PutUint32(out[24:28], b)
		return out
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:5]},
		{"bad version", badVersion},
		{"zero token length", withTokenLen(0)},
		{"token too long", withTokenLen(MaxTokenLength + 1)},
		{"truncated length prefix", valid[:10]},
		{"truncated token", valid[:14]},
		{"truncated posting count", valid[:17]},
		{"truncated postings", valid[:len(valid)-1]},
		{"descending postings", withPostings(1, 0)},
		{"duplicate postings", withPostings(1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Decode(tt.data)
			require.Error(t, err)
			assert.Nil(t, idx)
			assert.ErrorIs(t, err, apperrors.ErrCorruptFormat)

			var fe *apperrors.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "inverted index", fe.Format)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	assert.ErrorIs(t, err, apperrors.ErrIO)
}

func BenchmarkDecode(b *testing.B) {
	idx := make(index.InvertedIndex, 10000)
	for i := range 10000 {
		list := make(index.PostingList, 0, 32)
		for j := range 32 {
			list = append(list, ingestion.RowID(i+j*100))
		}
		idx[fmt.Sprintf("token%05d", i)] = list
	}
	var buf bytes.Buffer
	if _, err := Encode(&buf, idx); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
