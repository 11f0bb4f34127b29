package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/jobsearch/internal/ingestion"
)

func benchCorpus(n int) []ingestion.Record {
	rows := make([]ingestion.Record, n)
	for i := range rows {
		rows[i] = ingestion.Record{
			{Name: "title", Value: fmt.Sprintf("Data Engineer level_%d", i%10)},
			{Name: "desc", Value: fmt.Sprintf("pipelines for team_%d", i)},
		}
	}
	return rows
}

// BenchmarkSearch compares a term present in every row with one present in
// a single row near the end of the log.
func BenchmarkSearch(b *testing.B) {
	idx, store := buildCorpus(b, benchCorpus(5000))
	ctx := context.Background()
	for _, term := range []string{"pipelines", "level_3", "team_4999"} {
		b.Run(term, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Execute(ctx, term, idx, store); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
