// Package scoring implements the risk scorer. It combines four weighted
// factor scores into a composite risk score, category and confidence for
// every company of a frozen graph.
package scoring

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
	"github.com/opensource-finance/tenderwatch/internal/metrics"
)

// Scorer turns graph measurements into verdicts.
type Scorer struct {
	cfg domain.ScoringConfig
}

// New creates a scorer. Zero weights or thresholds fall back to defaults.
func New(cfg domain.ScoringConfig) *Scorer {
	def := domain.DefaultScoringConfig()
	if cfg.SharedDirectorWeight+cfg.TenderPatternWeight+cfg.CentralityWeight+cfg.ShellWeight <= 0 {
		cfg.SharedDirectorWeight = def.SharedDirectorWeight
		cfg.TenderPatternWeight = def.TenderPatternWeight
		cfg.CentralityWeight = def.CentralityWeight
		cfg.ShellWeight = def.ShellWeight
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = def.HighThreshold
	}
	if cfg.MediumThreshold <= 0 {
		cfg.MediumThreshold = def.MediumThreshold
	}
	return &Scorer{cfg: cfg}
}

// Config returns the effective scoring configuration.
func (s *Scorer) Config() domain.ScoringConfig { return s.cfg }

// Categorize buckets a risk score.
func (s *Scorer) Categorize(score float64) domain.RiskCategory {
	switch {
	case score >= s.cfg.HighThreshold:
		return domain.RiskHigh
	case score >= s.cfg.MediumThreshold:
		return domain.RiskMedium
	}
	return domain.RiskLow
}

// population holds the per-company evidence and the population statistics
// the factor normalizations need.
type population struct {
	evidence   []domain.Evidence
	sharedMean float64
	sharedMax  int
}

// ScoreAll scores every company of ix. The result is indexed by company
// ordinal.
func (s *Scorer) ScoreAll(ix *graph.Index, m *metrics.Result) []domain.Verdict {
	start := time.Now()
	pop := gatherEvidence(ix, m)

	verdicts := make([]domain.Verdict, len(pop.evidence))
	counts := make(map[domain.RiskCategory]int, 3)
	for c, ev := range pop.evidence {
		h := ix.HandleOf(domain.KindCompany, c)
		factors := domain.FactorScores{
			SharedDirector: SharedDirectorScore(ev.SharedCompanyCount, pop.sharedMean, pop.sharedMax),
			TenderPattern:  TenderPatternScore(ev.WonCount, ev.AvgValueRatio),
			Centrality:     Clamp01(m.Centrality.Percentile[h]),
			Shell:          ShellScore(ev.ShellGroupSize, ev.SharedAddressOnly),
		}
		v := s.Verdict(ix.Node(h).ID, factors, ev)
		verdicts[c] = v
		counts[v.Category]++
	}

	slog.Debug("companies scored",
		"companies", len(verdicts),
		"high", counts[domain.RiskHigh],
		"medium", counts[domain.RiskMedium],
		"low", counts[domain.RiskLow],
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return verdicts
}

// Verdict assembles the verdict of one company from its factor scores.
func (s *Scorer) Verdict(companyID string, f domain.FactorScores, ev domain.Evidence) domain.Verdict {
	v := domain.Verdict{
		CompanyID: companyID,
		Factors:   f,
		Evidence:  ev,
		Contributions: []domain.FactorContribution{
			contribution(domain.FactorSharedDirector, f.SharedDirector, s.cfg.SharedDirectorWeight),
			contribution(domain.FactorTenderPattern, f.TenderPattern, s.cfg.TenderPatternWeight),
			contribution(domain.FactorCentrality, f.Centrality, s.cfg.CentralityWeight),
			contribution(domain.FactorShell, f.Shell, s.cfg.ShellWeight),
		},
	}
	sum := 0.0
	for _, c := range v.Contributions {
		sum += c.Contribution
	}
	v.Composite = Clamp01(sum)
	v.RiskScore = v.Composite

	// A critical tender pattern forces the High band regardless of the
	// remaining factors.
	if s.cfg.EscalationThreshold > 0 && f.TenderPattern >= s.cfg.EscalationThreshold && v.RiskScore < s.cfg.HighThreshold {
		v.RiskScore = s.cfg.HighThreshold
		v.Escalated = true
		v.EscalationReason = fmt.Sprintf("%s %.2f at or above critical threshold %.2f",
			domain.FactorTenderPattern, f.TenderPattern, s.cfg.EscalationThreshold)
	}

	v.Category = s.Categorize(v.RiskScore)
	v.Confidence = Confidence(ev.Degree, true)
	return v
}

func contribution(name string, score, weight float64) domain.FactorContribution {
	return domain.FactorContribution{
		Factor:       name,
		Score:        score,
		Weight:       weight,
		Contribution: score * weight,
	}
}

// gatherEvidence measures every company once.
func gatherEvidence(ix *graph.Index, m *metrics.Result) population {
	ds := ix.Dataset()
	n := len(ds.Companies)
	pop := population{evidence: make([]domain.Evidence, n)}

	// Mean contract value per department over the tenders it issued.
	deptSum := make(map[string]int64, len(ds.Departments))
	deptCount := make(map[string]int, len(ds.Departments))
	for _, t := range ds.Tenders {
		deptSum[t.DepartmentID] += t.ContractValue
		deptCount[t.DepartmentID]++
	}

	type regKey struct {
		year    int
		address string
	}
	byYearAddress := make(map[regKey]int, n)
	byAddress := make(map[string]int, n)
	for _, c := range ds.Companies {
		byYearAddress[regKey{c.RegistrationYear, c.Address}]++
		byAddress[c.Address]++
	}

	sharedTotal := 0
	for i, company := range ds.Companies {
		h := ix.HandleOf(domain.KindCompany, i)
		ev := domain.Evidence{
			Degree:             ix.Degree(h, ""),
			DirectorCount:      ix.Degree(h, domain.RelDirectorOf),
			SharedCompanyCount: m.Projection.SharedDirectorPeers(i),
			BidCount:           ix.Degree(h, domain.RelBiddedFor),
		}

		ratioSum := 0.0
		for _, th := range ix.Neighbors(h, domain.RelWon, graph.Out) {
			t, _ := ix.Tender(th)
			ev.WonCount++
			ev.WonValue += t.ContractValue
			if cnt := deptCount[t.DepartmentID]; cnt > 0 {
				mean := float64(deptSum[t.DepartmentID]) / float64(cnt)
				if mean > 0 {
					ratioSum += float64(t.ContractValue) / mean
				}
			}
		}
		if ev.WonCount > 0 {
			ev.AvgValueRatio = ratioSum / float64(ev.WonCount)
		}

		same := byYearAddress[regKey{company.RegistrationYear, company.Address}]
		ev.ShellGroupSize = same - 1
		ev.SharedAddressOnly = byAddress[company.Address] - same

		pop.evidence[i] = ev
		sharedTotal += ev.SharedCompanyCount
		if ev.SharedCompanyCount > pop.sharedMax {
			pop.sharedMax = ev.SharedCompanyCount
		}
	}
	if n > 0 {
		pop.sharedMean = float64(sharedTotal) / float64(n)
	}
	return pop
}
