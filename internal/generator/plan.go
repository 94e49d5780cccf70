package generator

import "log/slog"

// groupDims sizes one grouped pattern instance: its member count and the
// number of tenders it touches.
type groupDims struct {
	size    int
	tenders int
}

// plan holds every pattern dimension, drawn before anything is injected so
// the dimensions can be fitted to the labeled-entity budgets first.
type plan struct {
	shared      []groupDims
	collusive   []groupDims
	shellGroups int
	boards      []int // companies per prolific director
	wins        []int // tenders per high-value winner
	rings       []int // directors per ownership ring
}

// drawPlan draws the raw dimensions in pattern order.
func (b *builder) drawPlan() plan {
	var p plan
	for g := 0; g < sharedGroups; g++ {
		size := b.intBetween(sharedGroupMin, sharedGroupMax)
		n := b.intBetween(sharedTendersMin, sharedTendersMax)
		p.shared = append(p.shared, groupDims{size: size, tenders: n})
	}

	clusters := b.intBetween(collusiveClustersMin, collusiveClustersMax)
	for k := 0; k < clusters; k++ {
		size := b.intBetween(collusiveSizeMin, collusiveSizeMax)
		pool := b.intBetween(collusivePoolMin, collusivePoolMax)
		p.collusive = append(p.collusive, groupDims{size: size, tenders: pool})
	}

	p.shellGroups = b.intBetween(shellGroupsMin, shellGroupsMax)

	prolific := b.intBetween(prolificMin, prolificMax)
	for i := 0; i < prolific; i++ {
		p.boards = append(p.boards, b.intBetween(prolificCompaniesMin, prolificCompaniesMax))
	}

	winners := b.intBetween(highValueMin, highValueMax)
	for i := 0; i < winners; i++ {
		p.wins = append(p.wins, b.intBetween(highValueWinsMin, highValueWinsMax))
	}

	rings := b.intBetween(circularMin, circularMax)
	for i := 0; i < rings; i++ {
		p.rings = append(p.rings, b.intBetween(circularLengthMin, circularLengthMax))
	}
	return p
}

// fit adjusts the drawn dimensions, within their ranges, so the labeled
// entity counts land on the budgets. Shared-director and collusive groups
// keep their draws. High-value wins are capped by the top quartile and by
// how many collusive tenders they may take over. Prolific boards and ring
// lengths absorb the remaining company and director budgets. When no
// prolific count can absorb them, boards and rings keep their draws.
func (p *plan) fit(budgetCompanies, budgetDirectors, budgetTenders, quartile int) {
	pool := 0
	for _, g := range p.collusive {
		pool = max(pool, g.tenders)
	}
	// at most half of the widest collusive pool changes hands
	limit := min(budgetTenders-pool+pool/2, quartile)
	wins := p.wins
	for len(wins) > highValueMin && highValueWinsMin*len(wins) > limit {
		wins = wins[:len(wins)-1]
	}
	p.wins = fitSizes(wins, highValueWinsMin, highValueWinsMax, min(sum(wins), limit))

	fixed := len(p.wins) + shellGroupSize*p.shellGroups
	for _, g := range p.shared {
		fixed += g.size
	}
	for _, g := range p.collusive {
		fixed += g.size
	}

	for _, n := range nearest(prolificMin, prolificMax, len(p.boards)) {
		wantRings := budgetDirectors - len(p.shared) - n
		count := len(p.rings)
		if wantRings > circularLengthMax*count && count < circularMax {
			count = circularMax
		}
		if wantRings < circularLengthMin*count && count > circularMin {
			count = circularMin
		}
		rings := fitSizes(padded(p.rings, count, circularLengthMin), circularLengthMin, circularLengthMax, wantRings)

		wantBoards := budgetCompanies - fixed - sum(rings)
		if wantBoards < prolificCompaniesMin*n || wantBoards > prolificCompaniesMax*n {
			continue
		}
		p.rings = rings
		p.boards = fitSizes(padded(p.boards, n, prolificCompaniesMin), prolificCompaniesMin, prolificCompaniesMax, wantBoards)
		return
	}
	slog.Debug("pattern budget unreachable, keeping drawn dimensions",
		"fraud_companies", budgetCompanies,
		"fraud_directors", budgetDirectors,
	)
}

// fitSizes moves sizes one step at a time toward a total of want, growing
// the smallest entry or shrinking the largest, lowest index first. Entries
// stay within [lo, hi], so want may be missed.
func fitSizes(sizes []int, lo, hi, want int) []int {
	out := append([]int(nil), sizes...)
	if len(out) == 0 {
		return out
	}
	for sum(out) < want {
		i := 0
		for j := range out {
			if out[j] < out[i] {
				i = j
			}
		}
		if out[i] >= hi {
			break
		}
		out[i]++
	}
	for sum(out) > want {
		i := 0
		for j := range out {
			if out[j] > out[i] {
				i = j
			}
		}
		if out[i] <= lo {
			break
		}
		out[i]--
	}
	return out
}

// nearest lists [lo, hi] ordered by distance from start, larger first on ties.
func nearest(lo, hi, start int) []int {
	out := []int{start}
	for d := 1; d <= hi-lo; d++ {
		for _, v := range []int{start + d, start - d} {
			if v >= lo && v <= hi {
				out = append(out, v)
			}
		}
	}
	return out
}

// padded returns the first n entries of xs, filling with fill when xs is short.
func padded(xs []int, n, fill int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = fill
		if i < len(xs) {
			out[i] = xs[i]
		}
	}
	return out
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
