package metrics

import (
	"sort"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
)

// Link is one weighted edge of the company projection.
type Link struct {
	To              int // company ordinal
	SharedDirectors int
	CoBids          int
}

// Weight is the number of shared directors plus co-bid tenders.
func (l Link) Weight() float64 { return float64(l.SharedDirectors + l.CoBids) }

// Projection is the undirected company-company graph: two companies are
// linked when they share a director or bid on the same tender.
type Projection struct {
	adj [][]Link
}

// ProjectCompanies builds the company projection of ix.
func ProjectCompanies(ix *graph.Index) *Projection {
	n := ix.Count(domain.KindCompany)
	type pair struct{ a, b int }
	stats := make(map[pair]*Link)
	var order []pair

	bump := func(members []graph.Handle, director bool) {
		ords := make([]int, len(members))
		for i, h := range members {
			ords[i] = ix.Node(h).Ordinal
		}
		sort.Ints(ords)
		for i := 0; i < len(ords); i++ {
			for j := i + 1; j < len(ords); j++ {
				if ords[i] == ords[j] {
					continue
				}
				p := pair{ords[i], ords[j]}
				l, ok := stats[p]
				if !ok {
					l = &Link{}
					stats[p] = l
					order = append(order, p)
				}
				if director {
					l.SharedDirectors++
				} else {
					l.CoBids++
				}
			}
		}
	}

	for _, d := range ix.Handles(domain.KindDirector) {
		bump(ix.Neighbors(d, domain.RelDirectorOf, graph.Out), true)
	}
	for _, t := range ix.Handles(domain.KindTender) {
		bump(ix.Neighbors(t, domain.RelBiddedFor, graph.In), false)
	}

	p := &Projection{adj: make([][]Link, n)}
	for _, k := range order {
		l := stats[k]
		p.adj[k.a] = append(p.adj[k.a], Link{To: k.b, SharedDirectors: l.SharedDirectors, CoBids: l.CoBids})
		p.adj[k.b] = append(p.adj[k.b], Link{To: k.a, SharedDirectors: l.SharedDirectors, CoBids: l.CoBids})
	}
	for i := range p.adj {
		links := p.adj[i]
		sort.Slice(links, func(x, y int) bool { return links[x].To < links[y].To })
	}
	return p
}

// Len returns the number of companies.
func (p *Projection) Len() int { return len(p.adj) }

// Links returns the neighbors of a company ordinal, sorted by ordinal.
func (p *Projection) Links(c int) []Link { return p.adj[c] }

// SharedDirectorPeers counts the distinct companies sharing at least one
// director with c.
func (p *Projection) SharedDirectorPeers(c int) int {
	n := 0
	for _, l := range p.adj[c] {
		if l.SharedDirectors > 0 {
			n++
		}
	}
	return n
}
