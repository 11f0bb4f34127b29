package vocab

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/jobsearch/pkg/errors"
)

func sampleRows() []ingestion.Record {
	return []ingestion.Record{
		{{Name: "title", Value: "Data Engineer"}, {Name: "desc", Value: "Build data pipelines"}},
		{{Name: "title", Value: "Data Scientist"}, {Name: "desc", Value: "Analyze data"}},
		{{Name: "title", Value: json.Number("42")}, {Name: "desc", Value: "the remote role"}},
	}
}

func TestBuilderCollectsDistinctTokens(t *testing.T) {
	b := NewBuilder(tokenizer.New(tokenizer.DefaultStopWords()), 2)
	b.Add(sampleRows(), []string{"title", "desc"})

	assert.Equal(t,
		[]string{"analyze", "build", "data", "engineer", "pipelines", "remote", "role", "scientist"},
		b.Vocabulary().Sorted(),
	)
	assert.Equal(t, 3, b.Rows())
}

func TestBuilderSkipsUnlistedAndMissingColumns(t *testing.T) {
	b := NewBuilder(tokenizer.New(nil), 0)
	b.Add(sampleRows(), []string{"title", "location"})

	assert.True(t, b.Vocabulary().Contains("engineer"))
	assert.False(t, b.Vocabulary().Contains("pipelines"))
	assert.False(t, b.Vocabulary().Contains("42"), "numeric cells are not tokenized")
}

func TestChunkSizeHasNoEffect(t *testing.T) {
	cols := []string{"title", "desc"}
	small := NewBuilder(tokenizer.New(nil), 1)
	small.Add(sampleRows(), cols)
	large := NewBuilder(tokenizer.New(nil), 1000)
	large.Add(sampleRows(), cols)

	assert.Equal(t, large.Vocabulary(), small.Vocabulary())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.bin")
	v := Vocabulary{"world": {}, "hello": {}, "help": {}}

	require.NoError(t, Save(path, v))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["hello","help","world"]`, string(raw))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, v, loaded)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.bin")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorruptFormat)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.bin"))
	assert.ErrorIs(t, err, apperrors.ErrIO)
}
