// Package metrics computes structural measurements over a graph.Index:
// bipartite degree centrality with percentile ranks, the company
// projection, Louvain communities and per-cluster statistics.
package metrics

import (
	"sort"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
)

// Centrality holds per-handle centrality in the director-company bipartite
// graph. Entries for tenders and departments stay zero.
type Centrality struct {
	Degree     []int
	Percentile []float64
}

// BipartiteCentrality ranks companies among companies and directors among
// directors by their DIRECTOR_OF degree.
func BipartiteCentrality(ix *graph.Index) Centrality {
	c := Centrality{
		Degree:     make([]int, ix.Len()),
		Percentile: make([]float64, ix.Len()),
	}
	for _, kind := range []domain.EntityKind{domain.KindCompany, domain.KindDirector} {
		handles := ix.Handles(kind)
		degrees := make([]int, len(handles))
		for i, h := range handles {
			degrees[i] = ix.Degree(h, domain.RelDirectorOf)
			c.Degree[h] = degrees[i]
		}
		for i, p := range PercentileRanks(degrees) {
			c.Percentile[handles[i]] = p
		}
	}
	return c
}

// PercentileRanks maps each value to the fraction of the other values that
// are strictly lower. A population of one (or none) ranks 0.
func PercentileRanks(values []int) []float64 {
	out := make([]float64, len(values))
	if len(values) < 2 {
		return out
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	denom := float64(len(values) - 1)
	for i, v := range values {
		lower := sort.SearchInts(sorted, v)
		out[i] = float64(lower) / denom
	}
	return out
}
