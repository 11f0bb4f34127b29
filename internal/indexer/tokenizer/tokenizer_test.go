package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tok := New(DefaultStopWords())

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"only separators", "  ,.;--!! ", []string{}},
		{"lowercases", "Data ENGINEER", []string{"data", "engineer"}},
		{"drops stop words", "the engineer of the year", []string{"engineer", "year"}},
		{"keeps duplicates", "data data data", []string{"data", "data", "data"}},
		{"underscore is a word char", "snake_case id", []string{"snake_case", "id"}},
		{"digits", "python3 and 2024", []string{"python3", "2024"}},
		{"single letters kept", "x y z", []string{"x", "y", "z"}},
		{"punctuation splits", "full-time/remote", []string{"full", "time", "remote"}},
		{"unicode letters", "Zürich café", []string{"zürich", "café"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Tokenize(tt.in))
		})
	}
}

func TestStopWordsAreCaseInsensitive(t *testing.T) {
	tok := New([]string{"Remote", " Onsite "})

	assert.Equal(t, []string{"job"}, tok.Tokenize("REMOTE job onsite"))
	assert.True(t, tok.IsStopWord("remote"))
	assert.False(t, tok.IsStopWord("job"))
}

func TestNoStopWords(t *testing.T) {
	tok := New(nil)
	assert.Equal(t, []string{"the", "a"}, tok.Tokenize("The a"))
}

func TestDefaultStopWordsReturnsCopy(t *testing.T) {
	words := DefaultStopWords()
	words[0] = "mutated"
	assert.NotEqual(t, "mutated", DefaultStopWords()[0])
}
