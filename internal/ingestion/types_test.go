package ingestion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSONKeepsFieldOrder(t *testing.T) {
	rec := Record{
		{Name: "title", Value: "Data Engineer"},
		{Name: "salary", Value: json.Number("120000")},
		{Name: "company_name", Value: "Acme"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Data Engineer","salary":120000,"company_name":"Acme"}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

func TestRecordUnmarshalRejectsNonObject(t *testing.T) {
	var rec Record
	assert.Error(t, json.Unmarshal([]byte(`["a","b"]`), &rec))
}

func TestRecordText(t *testing.T) {
	rec := Record{
		{Name: "title", Value: "Nurse"},
		{Name: "openings", Value: json.Number("3")},
	}

	s, ok := rec.Text("title")
	assert.True(t, ok)
	assert.Equal(t, "Nurse", s)

	_, ok = rec.Text("openings")
	assert.False(t, ok, "numbers are not text")

	_, ok = rec.Text("missing")
	assert.False(t, ok)
}

func TestRecordSetReplacesInPlace(t *testing.T) {
	var rec Record
	rec.Set("a", "1")
	rec.Set("b", "2")
	rec.Set("a", "3")

	require.Len(t, rec, 2)
	assert.Equal(t, Field{Name: "a", Value: "3"}, rec[0])
}

func TestEmptyRecordMarshalsAsObject(t *testing.T) {
	data, err := json.Marshal(Record{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}
