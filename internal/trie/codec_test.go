package trie

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
)

func TestRecordsRoundTrip(t *testing.T) {
	tr := build("hello", "help", "world", "work", "wonder")
	tr.Insert("help")

	records := tr.EncodeRecords()
	require.Len(t, records, tr.NodeCount())
	assert.Equal(t, uint32(0), records[0].ID)

	back, err := DecodeRecords(records)
	require.NoError(t, err)
	assert.Equal(t, tr.SearchAutoComplete(""), back.SearchAutoComplete(""))
	assert.Equal(t, 2, back.Frequency("help"))
	assert.Equal(t, tr.Len(), back.Len())
	assert.Equal(t, tr.NodeCount(), back.NodeCount())
}

func TestDecodeRecordsToleratesAnyOrder(t *testing.T) {
	tr := build("ab", "ac", "b")
	records := tr.EncodeRecords()
	reversed := make([]Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	back, err := DecodeRecords(reversed)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "ac", "b"}, back.SearchAutoComplete(""))
}

func TestDecodeRecordsCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
	}{
		{"empty", nil},
		{"id out of range", []Record{{ID: 0}, {ID: 5}}},
		{"duplicate id", []Record{{ID: 0, Children: []Child{{'a', 1}}}, {ID: 0}}},
		{"child out of range", []Record{{ID: 0, Children: []Child{{'a', 3}}}}},
		{"root as child", []Record{{ID: 0, Children: []Child{{'a', 1}}}, {ID: 1, Children: []Child{{'b', 0}}}}},
		{"child claimed twice", []Record{
			{ID: 0, Children: []Child{{'a', 1}, {'b', 2}}},
			{ID: 1, Children: []Child{{'c', 2}}},
			{ID: 2},
		}},
		{"duplicate edge", []Record{{ID: 0, Children: []Child{{'a', 1}, {'a', 2}}}, {ID: 1}, {ID: 2}}},
		{"invalid code point", []Record{{ID: 0, Children: []Child{{-1, 1}}}, {ID: 1}}},
		{"unreachable cycle", []Record{
			{ID: 0},
			{ID: 1, Children: []Child{{'a', 2}}},
			{ID: 2, Children: []Child{{'b', 1}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecords(tt.records)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, apperrors.ErrCorruptFormat)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	tr := build("hello", "help", "world", "café", "日本")
	path := filepath.Join(t.TempDir(), "trie.bin")
	require.NoError(t, tr.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "help"}, loaded.SearchAutoComplete("he"))
	assert.Equal(t, []string{}, loaded.SearchAutoComplete("xyz"))
	assert.Equal(t, []string{"café"}, loaded.SearchAutoComplete("caf"))
	assert.Equal(t, []string{"日本"}, loaded.SearchAutoComplete("日"))
	assert.Equal(t, tr.SearchAutoComplete(""), loaded.SearchAutoComplete(""))
}

func TestEncodeEmptyTrie(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().Encode(&buf))
	assert.Equal(t, HeaderSize+minRecordSize, buf.Len())

	back, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 0, back.Len())
	assert.Equal(t, []string{}, back.SearchAutoComplete(""))
}

func TestEncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, build("a").Encode(&buf))

	want := []byte{
		'J', 'S', 'T', 'R',
		1, 0, 0, 0, // version
		2, 0, 0, 0, // records
		0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, // root: id 0, flags 0, freq 0, 1 child
		'a', 0, 0, 0, 1, 0, 0, 0, // 'a' -> 1
		1, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, // id 1, terminal, freq 1, no children
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestDecodeBinaryCorrupt(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, build("ab").Encode(&buf))
	valid := buf.Bytes()

	mutate := func(off int, v uint32) []byte {
		b := bytes.Clone(valid)
		binary.LittleEndian.PutUint32(b[off:], v)
		return b
	}
	badFlags := bytes.Clone(valid)
	badFlags[HeaderSize+4] = 0x80

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:8]},
		{"bad magic", mutate(0, 0xDEADBEEF)},
		{"bad version", mutate(4, 9)},
		{"count beyond data", mutate(8, 1000)},
		{"truncated record", valid[:HeaderSize+5]},
		{"truncated children", valid[:HeaderSize+minRecordSize+3]},
		{"trailing bytes", append(bytes.Clone(valid), 0)},
		{"unknown flags", badFlags},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrCorruptFormat)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, apperrors.ErrIO)
}
