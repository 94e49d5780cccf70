package metrics

import "sort"

// DefaultResolution weights the null model in the modularity gain. Values
// above 1 favour smaller, tighter communities.
const DefaultResolution = 2.0

const (
	maxLevels = 10
	maxPasses = 50
	minGain   = 1e-12
)

// wedge is a weighted edge of the working graph.
type wedge struct {
	to     int
	weight float64
}

// wgraph is a symmetric weighted graph. self[i] holds A_ii, so the strength
// of node i is self[i] plus the weights of adj[i].
type wgraph struct {
	adj  [][]wedge
	self []float64
}

func (g *wgraph) strength(i int) float64 {
	s := g.self[i]
	for _, e := range g.adj[i] {
		s += e.weight
	}
	return s
}

// Louvain partitions the projection by greedy multi-level modularity
// optimisation at the given resolution and returns a community id per
// company ordinal. A non-positive resolution means DefaultResolution. Nodes
// are visited in ordinal order and ties go to the lowest community id, so
// the result is deterministic. Community ids are dense and numbered by the
// lowest ordinal they contain.
func Louvain(p *Projection, resolution float64) []int {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	n := p.Len()
	g := &wgraph{adj: make([][]wedge, n), self: make([]float64, n)}
	for i := 0; i < n; i++ {
		for _, l := range p.Links(i) {
			if w := l.Weight(); w > 0 {
				g.adj[i] = append(g.adj[i], wedge{to: l.To, weight: w})
			}
		}
	}

	membership := make([]int, n)
	for i := range membership {
		membership[i] = i
	}

	for level := 0; level < maxLevels; level++ {
		comm, moved := g.localMoves(resolution)
		if !moved {
			break
		}
		comm, k := relabel(comm)
		for i := range membership {
			membership[i] = comm[membership[i]]
		}
		g = g.aggregate(comm, k)
	}

	out, _ := relabel(membership)
	return out
}

// localMoves runs the node-moving phase until no node changes community.
func (g *wgraph) localMoves(resolution float64) ([]int, bool) {
	n := len(g.adj)
	comm := make([]int, n)
	strength := make([]float64, n)
	total := make([]float64, n) // sum of strengths per community
	m2 := 0.0
	for i := 0; i < n; i++ {
		comm[i] = i
		strength[i] = g.strength(i)
		total[i] = strength[i]
		m2 += strength[i]
	}
	if m2 == 0 {
		return comm, false
	}

	movedAny := false
	weights := make(map[int]float64)
	var keys []int
	for pass := 0; pass < maxPasses; pass++ {
		moved := false
		for i := 0; i < n; i++ {
			if strength[i] == 0 {
				continue
			}
			for k := range weights {
				delete(weights, k)
			}
			keys = keys[:0]
			for _, e := range g.adj[i] {
				c := comm[e.to]
				if _, ok := weights[c]; !ok {
					keys = append(keys, c)
				}
				weights[c] += e.weight
			}
			sort.Ints(keys)

			own := comm[i]
			total[own] -= strength[i]

			best := own
			bestGain := weights[own] - resolution*total[own]*strength[i]/m2
			for _, c := range keys {
				if c == own {
					continue
				}
				gain := weights[c] - resolution*total[c]*strength[i]/m2
				if gain > bestGain+minGain {
					best, bestGain = c, gain
				}
			}

			total[best] += strength[i]
			if best != own {
				comm[i] = best
				moved = true
				movedAny = true
			}
		}
		if !moved {
			break
		}
	}
	return comm, movedAny
}

// aggregate collapses each community into a single node.
func (g *wgraph) aggregate(comm []int, k int) *wgraph {
	next := &wgraph{adj: make([][]wedge, k), self: make([]float64, k)}
	acc := make([]map[int]float64, k)
	for i := range acc {
		acc[i] = make(map[int]float64)
	}
	for i := range g.adj {
		ci := comm[i]
		next.self[ci] += g.self[i]
		for _, e := range g.adj[i] {
			cj := comm[e.to]
			if cj == ci {
				next.self[ci] += e.weight
				continue
			}
			acc[ci][cj] += e.weight
		}
	}
	for c, m := range acc {
		keys := make([]int, 0, len(m))
		for to := range m {
			keys = append(keys, to)
		}
		sort.Ints(keys)
		for _, to := range keys {
			next.adj[c] = append(next.adj[c], wedge{to: to, weight: m[to]})
		}
	}
	return next
}

// relabel renumbers labels densely in order of first appearance.
func relabel(labels []int) ([]int, int) {
	ids := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := ids[l]
		if !ok {
			id = len(ids)
			ids[l] = id
		}
		out[i] = id
	}
	return out, len(ids)
}

// Members groups company ordinals by community id.
func Members(communities []int) [][]int {
	k := 0
	for _, c := range communities {
		if c+1 > k {
			k = c + 1
		}
	}
	out := make([][]int, k)
	for i, c := range communities {
		out[c] = append(out[c], i)
	}
	return out
}

// Modularity scores a partition of the projection.
func Modularity(p *Projection, communities []int) float64 {
	m2 := 0.0
	strength := make([]float64, p.Len())
	for i := 0; i < p.Len(); i++ {
		for _, l := range p.Links(i) {
			strength[i] += l.Weight()
		}
		m2 += strength[i]
	}
	if m2 == 0 {
		return 0
	}
	q := 0.0
	total := make(map[int]float64)
	for i := 0; i < p.Len(); i++ {
		total[communities[i]] += strength[i]
		for _, l := range p.Links(i) {
			if communities[l.To] == communities[i] {
				q += l.Weight()
			}
		}
	}
	q /= m2
	for _, t := range total {
		q -= (t / m2) * (t / m2)
	}
	return q
}
