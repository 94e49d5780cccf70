// Package investigation serves the query interface over an immutable,
// fully scored graph snapshot and swaps snapshots copy-on-write.
package investigation

import (
	"context"
	"fmt"
	"sort"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/explain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
	"github.com/opensource-finance/tenderwatch/internal/metrics"
	"github.com/opensource-finance/tenderwatch/internal/rules"
	"github.com/opensource-finance/tenderwatch/internal/scoring"
)

// Snapshot is one frozen dataset with everything derived from it. It is
// never modified after BuildSnapshot returns.
type Snapshot struct {
	Record   domain.DatasetRecord
	Index    *graph.Index
	Metrics  *metrics.Result
	Verdicts []domain.Verdict   // company ordinal -> verdict
	Hits     [][]domain.RuleHit // company ordinal -> fired indicators
	Ranked   []int              // company ordinals, highest risk first
	Clusters []domain.FraudCluster

	explainer *explain.Builder
	stats     domain.DashboardStats
	namespace string // report cache namespace
}

// BuildSnapshot indexes, measures, scores and explains ds. Stored verdicts
// are reused when they cover every company in order; otherwise the dataset
// is scored from scratch.
func BuildSnapshot(ctx context.Context, rec domain.DatasetRecord, ds *domain.Dataset, stored []domain.Verdict,
	scorer *scoring.Scorer, engine *rules.Engine, q domain.QueryConfig) (*Snapshot, error) {
	ix, err := graph.Build(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to index dataset %s: %w", rec.ID, err)
	}
	m := metrics.Compute(ix, q.ClusterResolution)

	verdicts := stored
	if !coversCompanies(stored, ds) {
		verdicts = scorer.ScoreAll(ix, m)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits, err := engine.EvaluateAll(ctx, verdicts)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate indicator rules: %w", err)
	}

	s := &Snapshot{
		Record:    rec,
		Index:     ix,
		Metrics:   m,
		Verdicts:  verdicts,
		Hits:      hits,
		Ranked:    rank(verdicts),
		Clusters:  metrics.FraudClusters(ix, m.Communities, verdicts, q.MinClusterSize),
		explainer: explain.NewBuilder(ix, m, verdicts, q.MaxSuspicious),
		namespace: rec.ID,
	}
	if s.Clusters == nil {
		s.Clusters = []domain.FraudCluster{}
	}
	s.stats = s.dashboard()
	return s, nil
}

func coversCompanies(verdicts []domain.Verdict, ds *domain.Dataset) bool {
	if len(verdicts) == 0 || len(verdicts) != len(ds.Companies) {
		return false
	}
	for i, v := range verdicts {
		if v.CompanyID != ds.Companies[i].ID {
			return false
		}
	}
	return true
}

// rank orders companies by descending risk score, ties by id.
func rank(verdicts []domain.Verdict) []int {
	order := make([]int, len(verdicts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := verdicts[order[a]], verdicts[order[b]]
		if va.RiskScore != vb.RiskScore {
			return va.RiskScore > vb.RiskScore
		}
		return va.CompanyID < vb.CompanyID
	})
	return order
}

func (s *Snapshot) dashboard() domain.DashboardStats {
	sum := s.Record.Summary
	st := domain.DashboardStats{
		DatasetID:          s.Record.ID,
		TotalEntities:      s.Index.Len(),
		TotalCompanies:     s.Index.Count(domain.KindCompany),
		TotalDirectors:     s.Index.Count(domain.KindDirector),
		TotalTenders:       s.Index.Count(domain.KindTender),
		TotalDepartments:   s.Index.Count(domain.KindDepartment),
		FraudClusterCount:  len(s.Clusters),
		TotalContractValue: sum.TotalContractValue,
		RiskDistribution: map[domain.RiskCategory]int{
			domain.RiskHigh:   0,
			domain.RiskMedium: 0,
			domain.RiskLow:    0,
		},
	}
	if st.TotalContractValue == 0 {
		for _, t := range s.Index.Dataset().Tenders {
			st.TotalContractValue += t.ContractValue
		}
	}
	for _, v := range s.Verdicts {
		st.RiskDistribution[v.Category]++
	}
	st.HighRiskCount = st.RiskDistribution[domain.RiskHigh]
	return st
}

// company resolves id to a company ordinal. Known ids of other kinds
// report ErrNoScore.
func (s *Snapshot) company(id string) (int, error) {
	h, ok := s.Index.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	n := s.Index.Node(h)
	if n.Kind != domain.KindCompany {
		return 0, fmt.Errorf("%w: %s is a %s", domain.ErrNoScore, id, n.Kind)
	}
	return n.Ordinal, nil
}
