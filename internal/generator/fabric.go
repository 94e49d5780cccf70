package generator

import "github.com/opensource-finance/tenderwatch/internal/domain"

const (
	maxBaselineDirectors = 4
	minBidders           = 3
	maxBidders           = 7
)

// edge is a relationship between entity ordinals. The relationship type
// fixes which slice each ordinal indexes.
type edge struct {
	src, dst int
	typ      domain.RelationshipType
	removed  bool
}

type edgeKey struct {
	typ      domain.RelationshipType
	src, dst int
}

// addEdge appends an edge unless an identical live edge exists.
func (b *builder) addEdge(typ domain.RelationshipType, src, dst int) bool {
	key := edgeKey{typ: typ, src: src, dst: dst}
	if _, ok := b.edgeSet[key]; ok {
		return false
	}
	b.edgeSet[key] = len(b.edges)
	b.edges = append(b.edges, edge{src: src, dst: dst, typ: typ})
	return true
}

func (b *builder) hasEdge(typ domain.RelationshipType, src, dst int) bool {
	_, ok := b.edgeSet[edgeKey{typ: typ, src: src, dst: dst}]
	return ok
}

func (b *builder) addDirectorOf(d, c int) bool {
	if !b.addEdge(domain.RelDirectorOf, d, c) {
		return false
	}
	b.companiesOf[d] = append(b.companiesOf[d], c)
	b.directorsOf[c] = append(b.directorsOf[c], d)
	return true
}

func (b *builder) addBid(c, t int) bool {
	if !b.addEdge(domain.RelBiddedFor, c, t) {
		return false
	}
	b.biddersOf[t] = append(b.biddersOf[t], c)
	return true
}

// setWinner makes c the single winner of tender t, retiring any previous
// WON edge and ensuring the winner also bid.
func (b *builder) setWinner(t, c int) {
	if b.winner[t] == c {
		return
	}
	if prev := b.winner[t]; prev >= 0 {
		key := edgeKey{typ: domain.RelWon, src: prev, dst: t}
		b.edges[b.edgeSet[key]].removed = true
		delete(b.edgeSet, key)
	}
	b.addBid(c, t)
	b.addEdge(domain.RelWon, c, t)
	b.winner[t] = c
	b.tenders[t].WinningCompanyID = b.companies[c].ID
}

// buildFabric creates the baseline relationships. Afterwards no company,
// director or tender is an orphan.
func (b *builder) buildFabric() {
	// every director sits on at least one board
	for d := range b.directors {
		for {
			c := b.rng.Intn(len(b.companies))
			if len(b.directorsOf[c]) < maxBaselineDirectors {
				b.addDirectorOf(d, c)
				break
			}
		}
	}

	for c := range b.companies {
		want := b.intBetween(1, maxBaselineDirectors)
		if want > len(b.directors) {
			want = len(b.directors)
		}
		for len(b.directorsOf[c]) < want {
			b.addDirectorOf(b.rng.Intn(len(b.directors)), c)
		}
	}

	all := make([]int, len(b.companies))
	for i := range all {
		all[i] = i
	}
	for t := range b.tenders {
		n := b.intBetween(minBidders, maxBidders)
		if n > len(all) {
			n = len(all)
		}
		for _, c := range b.sample(all, n) {
			b.addBid(c, t)
		}
		b.setWinner(t, b.pickWinner(b.biddersOf[t]))
	}

	deptIndex := make(map[string]int, len(b.departments))
	for i, d := range b.departments {
		deptIndex[d.ID] = i
	}
	for t, tender := range b.tenders {
		b.addEdge(domain.RelIssuedBy, t, deptIndex[tender.DepartmentID])
	}
}

// pickWinner draws a bidder weighted by company tenure.
func (b *builder) pickWinner(bidders []int) int {
	weights := make([]float64, len(bidders))
	total := 0.0
	for i, c := range bidders {
		weights[i] = 1 + float64(domain.MaxRegistrationYear-b.companies[c].RegistrationYear)/10
		total += weights[i]
	}
	r := b.rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return bidders[i]
		}
		r -= w
	}
	return bidders[len(bidders)-1]
}

// sample draws k distinct elements of pool with a partial Fisher-Yates
// shuffle. pool is not modified.
func (b *builder) sample(pool []int, k int) []int {
	cp := append([]int(nil), pool...)
	for i := 0; i < k; i++ {
		j := i + b.rng.Intn(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:k]
}
