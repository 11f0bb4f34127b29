package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "Senior Data Engineer (Remote) - Python, SQL & Spark",
	"medium": `We are looking for a data analyst to join our growing analytics team.
        You will build dashboards, write SQL against the warehouse, and partner with
        product managers on experiment design. 3+ years of experience with Tableau or
        Looker preferred; knowledge of dbt_core is a plus.`,
	"long": strings.Repeat(`Responsibilities include owning the ingestion pipelines that
        feed our reporting layer, reviewing pull requests, mentoring junior engineers
        and on-call rotation for the batch platform. Benefits: health_insurance, 401k,
        paid time off and a remote-friendly schedule. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	tok := New(DefaultStopWords())
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tok.Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	tok := New(DefaultStopWords())
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tok.Tokenize(text)
		}
	})
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	tok := New(DefaultStopWords())
	base := "remote data engineer python sql spark analytics "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tok.Tokenize(text)
			}
		})
	}
}
