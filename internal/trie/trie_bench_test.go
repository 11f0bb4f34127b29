package trie

import (
	"fmt"
	"testing"
)

func benchWords(n int) map[string]struct{} {
	words := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		words[fmt.Sprintf("word%06d", i)] = struct{}{}
	}
	return words
}

func BenchmarkBuildFromSet(b *testing.B) {
	words := benchWords(50000)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		New().BuildFromSet(words, DefaultBatchSize)
	}
}

func BenchmarkComplete(b *testing.B) {
	t := New()
	t.BuildFromSet(benchWords(50000), DefaultBatchSize)
	for _, prefix := range []string{"word0", "word01", "word0123"} {
		b.Run(prefix, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = t.Complete(prefix, 10)
			}
		})
	}
}
