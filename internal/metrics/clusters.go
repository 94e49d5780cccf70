package metrics

import (
	"log/slog"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
)

// Result bundles the structural measurements of one index.
type Result struct {
	Centrality  Centrality
	Projection  *Projection
	Communities []int // company ordinal -> community id
}

// Compute runs every structural measurement over ix, detecting communities
// at the given Louvain resolution.
func Compute(ix *graph.Index, resolution float64) *Result {
	start := time.Now()
	r := &Result{
		Centrality: BipartiteCentrality(ix),
		Projection: ProjectCompanies(ix),
	}
	r.Communities = Louvain(r.Projection, resolution)

	slog.Debug("graph metrics computed",
		"companies", r.Projection.Len(),
		"resolution", resolution,
		"communities", len(Members(r.Communities)),
		"modularity", Modularity(r.Projection, r.Communities),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return r
}

// FraudClusters returns the communities of at least minSize companies in
// which more than half the members carry a fraud label. verdicts is indexed
// by company ordinal.
func FraudClusters(ix *graph.Index, communities []int, verdicts []domain.Verdict, minSize int) []domain.FraudCluster {
	ds := ix.Dataset()
	var out []domain.FraudCluster
	for id, members := range Members(communities) {
		if len(members) < minSize {
			continue
		}
		labeled := 0
		for _, c := range members {
			labeled += ds.Companies[c].FraudLabel
		}
		if labeled*2 <= len(members) {
			continue
		}

		fc := domain.FraudCluster{ClusterID: id, Size: len(members)}
		var (
			riskSum  float64
			wonValue int64
			wonCount int
		)
		for _, c := range members {
			company := ds.Companies[c]
			fc.Members = append(fc.Members, company.ID)
			riskSum += verdicts[c].RiskScore
			if verdicts[c].Category == domain.RiskHigh {
				fc.HighRiskCount++
			}
			for _, t := range ix.Neighbors(ix.HandleOf(domain.KindCompany, c), domain.RelWon, graph.Out) {
				tender, _ := ix.Tender(t)
				wonValue += tender.ContractValue
				wonCount++
			}
		}
		fc.AvgRiskScore = riskSum / float64(len(members))
		fc.LabeledShare = float64(labeled) / float64(len(members))
		if wonCount > 0 {
			fc.AvgContractValue = float64(wonValue) / float64(wonCount)
		}
		out = append(out, fc)
	}
	return out
}
