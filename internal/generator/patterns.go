package generator

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// Pattern names, in injection order.
const (
	PatternSharedDirectors  = "shared_directors"
	PatternCollusiveCluster = "collusive_cluster"
	PatternShellCompanies   = "shell_companies"
	PatternProlificDirector = "prolific_directors"
	PatternHighValueWinner  = "high_value_winners"
	PatternCircularOwner    = "circular_ownership"
)

// Patterns lists the injected fraud topologies in injection order.
var Patterns = []string{
	PatternSharedDirectors,
	PatternCollusiveCluster,
	PatternShellCompanies,
	PatternProlificDirector,
	PatternHighValueWinner,
	PatternCircularOwner,
}

// Pattern dimensions. Each pair is an inclusive range.
const (
	sharedGroups          = 5
	sharedGroupMin        = 3
	sharedGroupMax        = 5
	sharedTendersMin      = 1
	sharedTendersMax      = 3
	collusiveClustersMin  = 3
	collusiveClustersMax  = 4
	collusiveSizeMin      = 5
	collusiveSizeMax      = 8
	collusivePoolMin      = 10
	collusivePoolMax      = 15
	shellGroupsMin        = 3
	shellGroupsMax        = 4
	shellGroupSize        = 6
	shellYearMin          = 2018
	shellYearMax          = 2023
	prolificMin           = 5
	prolificMax           = 8
	prolificCompaniesMin  = 15
	prolificCompaniesMax  = 25
	highValueMin          = 5
	highValueMax          = 7
	highValueWinsMin      = 5
	highValueWinsMax      = 10
	highValueFloor        = 4_200_000
	circularMin           = 2
	circularMax           = 3
	circularLengthMin     = 3
	circularLengthMax     = 5
	shellAddressNumberMax = 10
)

// Footprint records the entities one pattern instance labeled fraudulent.
type Footprint struct {
	Pattern   string   `json:"pattern"`
	Instance  int      `json:"instance"`
	Companies []string `json:"companies"`
	Directors []string `json:"directors"`
	Tenders   []string `json:"tenders"`
}

// injectPatterns draws and fits the pattern plan, then applies every
// pattern in order. Each instance samples companies and directors no
// earlier instance touched.
func (b *builder) injectPatterns() error {
	p := b.drawPlan()
	p.fit(b.cfg.FraudCompanies, b.cfg.FraudDirectors, b.cfg.FraudTenders, len(b.tenders)/4)
	slog.Debug("pattern plan fitted",
		"collusive_clusters", len(p.collusive),
		"shell_groups", p.shellGroups,
		"prolific_boards", p.boards,
		"high_value_wins", p.wins,
		"ring_lengths", p.rings,
	)

	steps := []struct {
		name string
		fn   func() error
	}{
		{PatternSharedDirectors, func() error { return b.injectSharedDirectors(p.shared) }},
		{PatternCollusiveCluster, func() error { return b.injectCollusiveClusters(p.collusive) }},
		{PatternShellCompanies, func() error { return b.injectShellCompanies(p.shellGroups) }},
		{PatternProlificDirector, func() error { return b.injectProlificDirectors(p.boards) }},
		{PatternHighValueWinner, func() error { return b.injectHighValueWinners(p.wins) }},
		{PatternCircularOwner, func() error { return b.injectCircularOwnership(p.rings) }},
	}
	for _, step := range steps {
		before := len(b.footprints)
		if err := step.fn(); err != nil {
			return fmt.Errorf("inject %s: %w", step.name, err)
		}
		slog.Debug("pattern injected",
			"pattern", step.name,
			"instances", len(b.footprints)-before,
		)
	}
	return nil
}

// attempt retries try until it commits or the retry budget runs out.
// try must not mutate the builder unless it returns true.
func (b *builder) attempt(pattern string, instance int, try func() (bool, error)) error {
	for i := 0; i < b.cfg.MaxRetries; i++ {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s instance %d after %d attempts",
		domain.ErrCandidatesExhausted, pattern, instance, b.cfg.MaxRetries)
}

func (b *builder) freeCompanies() []int {
	var out []int
	for c, used := range b.usedCompany {
		if !used {
			out = append(out, c)
		}
	}
	return out
}

func (b *builder) freeDirectors() []int {
	var out []int
	for d, used := range b.usedDirector {
		if !used {
			out = append(out, d)
		}
	}
	return out
}

// topTenders returns the ordinals of the n highest-value tenders, ties by
// ordinal, in ascending ordinal order.
func (b *builder) topTenders(n int) []int {
	order := make([]int, len(b.tenders))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return b.tenders[order[i]].ContractValue > b.tenders[order[j]].ContractValue
	})
	top := order[:min(n, len(order))]
	sort.Ints(top)
	return top
}

func (b *builder) claimedTenders() int {
	n := 0
	for _, used := range b.usedTender {
		if used {
			n++
		}
	}
	return n
}

// record claims the entities of a committed instance and stores its footprint.
func (b *builder) record(pattern string, instance int, companies, directors, tenders []int) {
	fp := Footprint{Pattern: pattern, Instance: instance}
	for _, c := range companies {
		b.usedCompany[c] = true
		fp.Companies = append(fp.Companies, b.companies[c].ID)
	}
	for _, d := range directors {
		b.usedDirector[d] = true
		fp.Directors = append(fp.Directors, b.directors[d].ID)
	}
	for _, t := range tenders {
		b.usedTender[t] = true
		fp.Tenders = append(fp.Tenders, b.tenders[t].ID)
	}
	sort.Strings(fp.Companies)
	sort.Strings(fp.Directors)
	sort.Strings(fp.Tenders)
	b.footprints = append(b.footprints, fp)
}

// injectSharedDirectors seats one director on several companies that all
// bid on the same tenders.
func (b *builder) injectSharedDirectors(groups []groupDims) error {
	allTenders := make([]int, len(b.tenders))
	for i := range allTenders {
		allTenders[i] = i
	}

	for g, dims := range groups {
		size, nTenders := dims.size, dims.tenders
		err := b.attempt(PatternSharedDirectors, g, func() (bool, error) {
			dirs, comps := b.freeDirectors(), b.freeCompanies()
			if len(dirs) == 0 || len(comps) < size || len(allTenders) < nTenders {
				return false, nil
			}
			d := dirs[b.rng.Intn(len(dirs))]
			members := b.sample(comps, size)
			shared := b.sample(allTenders, nTenders)
			sort.Ints(shared)

			for _, c := range members {
				b.addDirectorOf(d, c)
				for _, t := range shared {
					b.addBid(c, t)
				}
			}
			b.record(PatternSharedDirectors, g, members, []int{d}, nil)
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// injectCollusiveClusters lets each cluster rotate wins over a pool drawn
// from the highest-value tenders, with every member bidding on the whole
// pool. Pools may overlap; a later cluster takes over the wins it draws.
func (b *builder) injectCollusiveClusters(clusters []groupDims) error {
	widest := 0
	for _, dims := range clusters {
		widest = max(widest, dims.tenders)
	}
	top := b.topTenders(widest)

	for k, dims := range clusters {
		size, poolSize := dims.size, min(dims.tenders, len(top))
		err := b.attempt(PatternCollusiveCluster, k, func() (bool, error) {
			comps := b.freeCompanies()
			if len(comps) < size {
				return false, nil
			}
			members := b.sample(comps, size)
			pool := b.sample(top, poolSize)
			sort.Ints(pool)

			for j, t := range pool {
				for _, c := range members {
					b.addBid(c, t)
				}
				b.setWinner(t, members[j%len(members)])
			}
			b.record(PatternCollusiveCluster, k, members, nil, pool)
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// injectShellCompanies gives each group one registration year and one
// address that no other company uses.
func (b *builder) injectShellCompanies(groups int) error {
	numbers := b.rng.Perm(shellAddressNumberMax)
	for g := 0; g < groups; g++ {
		year := b.intBetween(shellYearMin, shellYearMax)
		address := fmt.Sprintf("%d Dummy Street, Shell City 00000", numbers[g]+1)
		err := b.attempt(PatternShellCompanies, g, func() (bool, error) {
			comps := b.freeCompanies()
			if len(comps) < shellGroupSize {
				return false, nil
			}
			members := b.sample(comps, shellGroupSize)
			for _, c := range members {
				b.companies[c].RegistrationYear = year
				b.companies[c].Address = address
			}
			b.record(PatternShellCompanies, g, members, nil, nil)
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// injectProlificDirectors turns directors into high-degree hubs.
func (b *builder) injectProlificDirectors(boardCounts []int) error {
	for i, boards := range boardCounts {
		err := b.attempt(PatternProlificDirector, i, func() (bool, error) {
			dirs, comps := b.freeDirectors(), b.freeCompanies()
			if len(dirs) == 0 || len(comps) < boards {
				return false, nil
			}
			d := dirs[b.rng.Intn(len(dirs))]
			members := b.sample(comps, boards)
			for _, c := range members {
				b.addDirectorOf(d, c)
			}
			b.record(PatternProlificDirector, i, members, []int{d}, nil)
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// injectHighValueWinners hands each chosen company a run of top-quartile
// contracts. Unclaimed tenders are taken while the tender budget lasts;
// after that a winner takes over tenders an earlier pattern claimed. No
// tender goes to two high-value winners.
func (b *builder) injectHighValueWinners(winCounts []int) error {
	quartile := b.topTenders(len(b.tenders) / 4)
	held := make([]bool, len(b.tenders))

	for i, wins := range winCounts {
		err := b.attempt(PatternHighValueWinner, i, func() (bool, error) {
			comps := b.freeCompanies()
			if len(comps) == 0 {
				return false, nil
			}
			var fresh, reuse []int
			for _, t := range quartile {
				switch {
				case held[t]:
				case b.usedTender[t]:
					reuse = append(reuse, t)
				default:
					fresh = append(fresh, t)
				}
			}
			nFresh := min(wins, max(0, b.cfg.FraudTenders-b.claimedTenders()), len(fresh))
			nReuse := wins - nFresh
			if nReuse > len(reuse) {
				nFresh += nReuse - len(reuse)
				nReuse = len(reuse)
			}
			if nFresh > len(fresh) {
				return false, nil
			}

			c := comps[b.rng.Intn(len(comps))]
			won := b.sample(fresh, nFresh)
			won = append(won, b.sample(reuse, nReuse)...)
			sort.Ints(won)
			for _, t := range won {
				value := int64(b.intBetween(highValueFloor, domain.MaxContractValue))
				if b.tenders[t].ContractValue < value {
					b.tenders[t].ContractValue = value
				}
				b.setWinner(t, c)
				held[t] = true
			}
			b.record(PatternHighValueWinner, i, []int{c}, nil, won)
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// injectCircularOwnership closes director/company rings D0→C0←D1→C1←...←D0.
// A candidate whose members are already linked by baseline edges would not
// form a simple ring and is rejected.
func (b *builder) injectCircularOwnership(lengths []int) error {
	for i, k := range lengths {
		err := b.attempt(PatternCircularOwner, i, func() (bool, error) {
			dirs, comps := b.freeDirectors(), b.freeCompanies()
			if len(dirs) < k || len(comps) < k {
				return false, nil
			}
			ring := b.sample(dirs, k)
			members := b.sample(comps, k)
			for _, d := range ring {
				for _, c := range members {
					if b.hasEdge(domain.RelDirectorOf, d, c) {
						return false, nil
					}
				}
			}

			for j := 0; j < k; j++ {
				b.addDirectorOf(ring[j], members[j])
				b.addDirectorOf(ring[(j+1)%k], members[j])
			}

			dirIDs := make([]string, k)
			compIDs := make([]string, k)
			for j := 0; j < k; j++ {
				dirIDs[j] = b.directors[ring[j]].ID
				compIDs[j] = b.companies[members[j]].ID
			}
			n, err := InducedCycleLength(dirIDs, compIDs, b.memberEdges(ring, members))
			if err != nil {
				return false, fmt.Errorf("ring %d: %w", i, err)
			}
			if n != k {
				return false, fmt.Errorf("%w: ring %d closed after %d hops, want %d",
					domain.ErrInvalidDataset, i, n, k)
			}
			b.record(PatternCircularOwner, i, members, ring, nil)
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// memberEdges returns the live DIRECTOR_OF edges among the given members.
func (b *builder) memberEdges(directors, companies []int) []domain.Relationship {
	inSet := make(map[int]bool, len(companies))
	for _, c := range companies {
		inSet[c] = true
	}
	var out []domain.Relationship
	for _, d := range directors {
		for _, c := range b.companiesOf[d] {
			if inSet[c] {
				out = append(out, domain.Relationship{
					SourceID: b.directors[d].ID,
					TargetID: b.companies[c].ID,
					Type:     domain.RelDirectorOf,
				})
			}
		}
	}
	return out
}
