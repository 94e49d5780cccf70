package explain

import (
	"fmt"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
)

// describe renders the graph evidence behind one fired rule.
func (b *Builder) describe(c int, hit domain.RuleHit) string {
	switch hit.RuleID {
	case domain.RuleSharedDirectors:
		return b.sharedDirectors(c)
	case domain.RuleSuspiciousWins:
		return b.winPattern(c)
	case domain.RuleNetworkCentrality:
		return b.centrality(c)
	case domain.RuleShellCompany:
		return b.shell(c)
	case domain.RuleHighValueWinner:
		return b.highValue(c)
	}
	if hit.Reason != "" {
		return fmt.Sprintf("%s (%.2f)", hit.Reason, hit.Value)
	}
	return fmt.Sprintf("value %.2f", hit.Value)
}

func (b *Builder) sharedDirectors(c int) string {
	ix := b.ix
	h := ix.HandleOf(domain.KindCompany, c)
	ev := b.verdicts[c].Evidence

	// The director linking c to the most other companies.
	best := graph.Invalid
	var bestOthers []graph.Handle
	for _, d := range ix.Neighbors(h, domain.RelDirectorOf, graph.In) {
		var others []graph.Handle
		for _, o := range ix.Neighbors(d, domain.RelDirectorOf, graph.Out) {
			if o != h {
				others = append(others, o)
			}
		}
		if len(others) > len(bestOthers) {
			best, bestOthers = d, others
		}
	}
	if best == graph.Invalid {
		return "no directors shared with other companies"
	}

	desc := fmt.Sprintf("shares director %s with %d other companies", ix.Node(best).ID, len(bestOthers))
	if ev.SharedCompanyCount > len(bestOthers) {
		desc += fmt.Sprintf(", %d in total through all directors", ev.SharedCompanyCount)
	}

	// The tender where most of those companies bid alongside c.
	peer := make(map[graph.Handle]bool, len(bestOthers))
	for _, o := range bestOthers {
		peer[o] = true
	}
	tender, coBids, tenderID := graph.Invalid, 0, ""
	for _, t := range ix.Neighbors(h, domain.RelBiddedFor, graph.Out) {
		n := 0
		for _, bidder := range ix.Neighbors(t, domain.RelBiddedFor, graph.In) {
			if peer[bidder] {
				n++
			}
		}
		id := ix.Node(t).ID
		if n > coBids || (n == coBids && n > 0 && id < tenderID) {
			tender, coBids, tenderID = t, n, id
		}
	}
	if tender != graph.Invalid {
		desc += fmt.Sprintf("; %d of them also bid on %s", coBids, tenderID)
	}
	return desc
}

func (b *Builder) winPattern(c int) string {
	ix := b.ix
	ev := b.verdicts[c].Evidence
	desc := fmt.Sprintf("won %d of %d bids", ev.WonCount, ev.BidCount)
	if ev.WonCount == 0 {
		return desc
	}
	desc += fmt.Sprintf("; won contracts average %.2fx the issuing department's mean", ev.AvgValueRatio)

	largest, value := graph.Invalid, int64(0)
	for _, t := range ix.Neighbors(ix.HandleOf(domain.KindCompany, c), domain.RelWon, graph.Out) {
		tender, _ := ix.Tender(t)
		if tender.ContractValue > value {
			largest, value = t, tender.ContractValue
		}
	}
	if largest != graph.Invalid {
		desc += fmt.Sprintf(" (largest %s at %d)", ix.Node(largest).ID, value)
	}
	return desc
}

func (b *Builder) centrality(c int) string {
	v := b.verdicts[c]
	return fmt.Sprintf("linked to %d directors, more than %.0f%% of companies",
		v.Evidence.DirectorCount, v.Factors.Centrality*100)
}

func (b *Builder) shell(c int) string {
	ev := b.verdicts[c].Evidence
	company := b.ix.Dataset().Companies[c]
	if ev.ShellGroupSize == 0 {
		return fmt.Sprintf("shares address %q with %d companies registered in other years",
			company.Address, ev.SharedAddressOnly)
	}
	desc := fmt.Sprintf("shares registration year %d and address %q with %d other companies",
		company.RegistrationYear, company.Address, ev.ShellGroupSize)
	if ev.SharedAddressOnly > 0 {
		desc += fmt.Sprintf("; %d more share the address only", ev.SharedAddressOnly)
	}
	return desc
}

func (b *Builder) highValue(c int) string {
	ev := b.verdicts[c].Evidence
	return fmt.Sprintf("won %d contracts worth %d in total at %.2fx the issuing department's mean",
		ev.WonCount, ev.WonValue, ev.AvgValueRatio)
}
