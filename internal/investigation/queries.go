package investigation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
)

// DashboardStats returns the overview of the installed dataset.
func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return domain.DashboardStats{}, err
	}
	st := snap.stats
	st.RiskDistribution = make(map[domain.RiskCategory]int, len(snap.stats.RiskDistribution))
	for k, v := range snap.stats.RiskDistribution {
		st.RiskDistribution[k] = v
	}
	return st, nil
}

// Dataset returns the record of the installed dataset.
func (s *Service) Dataset(ctx context.Context) (domain.DatasetRecord, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return domain.DatasetRecord{}, err
	}
	return snap.Record, nil
}

// ListCompanies returns companies by descending risk, optionally filtered
// by category. limit is clamped to [1, MaxLimit]; zero selects the default.
func (s *Service) ListCompanies(ctx context.Context, category string, limit int) ([]domain.CompanyProfile, error) {
	var want domain.RiskCategory
	if category != "" {
		c, ok := domain.ParseRiskCategory(category)
		if !ok {
			return nil, fmt.Errorf("%w: unknown risk category %q", domain.ErrInvalidInput, category)
		}
		want = c
	}
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	limit = s.clampLimit(limit)
	ds := snap.Index.Dataset()
	out := make([]domain.CompanyProfile, 0, min(limit, len(snap.Ranked)))
	for _, c := range snap.Ranked {
		v := snap.Verdicts[c]
		if want != "" && v.Category != want {
			continue
		}
		company := ds.Companies[c]
		out = append(out, domain.CompanyProfile{
			CompanyID:        company.ID,
			Name:             company.Name,
			RegistrationYear: company.RegistrationYear,
			IndustryType:     company.IndustryType,
			Address:          company.Address,
			RiskScore:        v.RiskScore,
			RiskCategory:     v.Category,
			Confidence:       v.Confidence,
			FraudLabel:       company.FraudLabel,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Service) clampLimit(limit int) int {
	switch {
	case limit == 0:
		return s.query.DefaultLimit
	case limit < 1:
		return 1
	case limit > s.query.MaxLimit:
		return s.query.MaxLimit
	}
	return limit
}

func (s *Service) clampDepth(depth int) int {
	switch {
	case depth == 0:
		return s.query.DefaultDepth
	case depth < 1:
		return 1
	case depth > s.query.MaxDepth:
		return s.query.MaxDepth
	}
	return depth
}

// CompanyDetail returns the full profile of a company. Reports are cached
// per dataset; concurrent misses for one company render it once.
func (s *Service) CompanyDetail(ctx context.Context, id string) (*domain.CompanyDetail, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	c, err := snap.company(id)
	if err != nil {
		return nil, err
	}

	var detail domain.CompanyDetail
	err = s.cachedReport(ctx, snap, "detail:"+id, &detail, func() any {
		return snap.detail(c, s.query.TenderHistoryCap)
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// InvestigationSummary returns the explained verdict of a company.
func (s *Service) InvestigationSummary(ctx context.Context, id string) (*domain.InvestigationSummary, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	c, err := snap.company(id)
	if err != nil {
		return nil, err
	}

	var summary domain.InvestigationSummary
	err = s.cachedReport(ctx, snap, "investigation:"+id, &summary, func() any {
		return snap.explainer.Summary(c, snap.Hits[c])
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// cachedReport decodes the report stored under key into out, rendering and
// storing it on a miss. Every caller receives its own decoded copy.
func (s *Service) cachedReport(ctx context.Context, snap *Snapshot, key string, out any, render func() any) error {
	namespace := snap.namespace
	data, err, _ := s.reports.Do(namespace+"/"+key, func() (any, error) {
		if s.deps.Cache != nil {
			if cached, err := s.deps.Cache.Get(ctx, namespace, key); err == nil && cached != nil {
				s.deps.Metrics.CacheHit()
				return cached, nil
			} else if err != nil {
				slog.Warn("report cache read failed", "key", key, "error", err)
			}
		}
		s.deps.Metrics.CacheMiss()

		encoded, err := json.Marshal(render())
		if err != nil {
			return nil, fmt.Errorf("failed to encode report: %w", err)
		}
		if s.deps.Cache != nil {
			ttl := time.Duration(s.query.ReportCacheTTL) * time.Second
			if err := s.deps.Cache.Set(ctx, namespace, key, encoded, ttl); err != nil {
				slog.Warn("report cache write failed", "key", key, "error", err)
			}
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(data.([]byte), out)
}

func (snap *Snapshot) detail(c, historyCap int) domain.CompanyDetail {
	ix := snap.Index
	h := ix.HandleOf(domain.KindCompany, c)
	company := ix.Dataset().Companies[c]
	v := snap.Verdicts[c]

	d := domain.CompanyDetail{
		EntityID:          company.ID,
		EntityType:        domain.KindCompany,
		Company:           company,
		RiskScore:         v.RiskScore,
		RiskCategory:      v.Category,
		Confidence:        v.Confidence,
		Factors:           v.Factors,
		Contributions:     v.Contributions,
		Escalated:         v.Escalated,
		RiskIndicators:    snap.explainer.Indicators(c, snap.Hits[c]),
		TenderHistory:     []domain.TenderRecord{},
		ConnectedEntities: []domain.ConnectedEntity{},
		ClusterID:         snap.Metrics.Communities[c],
	}

	for _, t := range ix.Neighbors(h, domain.RelBiddedFor, graph.Out) {
		tender, _ := ix.Tender(t)
		d.TenderHistory = append(d.TenderHistory, domain.TenderRecord{
			TenderID:      tender.ID,
			DepartmentID:  tender.DepartmentID,
			ContractValue: tender.ContractValue,
			Year:          tender.Year,
			Won:           tender.WinningCompanyID == company.ID,
		})
	}
	sort.Slice(d.TenderHistory, func(i, j int) bool {
		a, b := d.TenderHistory[i], d.TenderHistory[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.TenderID < b.TenderID
	})
	if len(d.TenderHistory) > historyCap {
		d.TenderHistory = d.TenderHistory[:historyCap]
	}

	for _, i := range ix.IncidentEdges(h) {
		e := ix.Edge(i)
		other, outgoing := e.Target, true
		if e.Target == h {
			other, outgoing = e.Source, false
		}
		n := ix.Node(other)
		d.ConnectedEntities = append(d.ConnectedEntities, domain.ConnectedEntity{
			EntityID:         n.ID,
			EntityType:       n.Kind,
			RelationshipType: e.Type,
			Outgoing:         outgoing,
		})
	}
	return d
}

// NetworkGraph returns the subgraph around entityID, or around the
// highest-risk companies when entityID is empty. depth is clamped to
// [1, MaxDepth]; zero selects the default.
func (s *Service) NetworkGraph(ctx context.Context, entityID string, depth int) (*domain.NetworkGraph, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	ix := snap.Index

	var seeds []graph.Handle
	if entityID != "" {
		h, ok := ix.Lookup(entityID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, entityID)
		}
		seeds = []graph.Handle{h}
	} else {
		for _, c := range snap.Ranked[:min(s.query.DefaultSeeds, len(snap.Ranked))] {
			seeds = append(seeds, ix.HandleOf(domain.KindCompany, c))
		}
	}

	depth = s.clampDepth(depth)
	sg := ix.Traverse(seeds, depth, s.query.MaxNodes)

	g := &domain.NetworkGraph{
		Seeds:     make([]string, 0, len(seeds)),
		Depth:     depth,
		Truncated: sg.Truncated,
		Nodes:     make([]domain.NetworkNode, 0, len(sg.Nodes)),
		Edges:     make([]domain.NetworkEdge, 0, len(sg.Edges)),
	}
	for _, h := range seeds {
		g.Seeds = append(g.Seeds, ix.Node(h).ID)
	}
	for _, visit := range sg.Nodes {
		n := ix.Node(visit.Handle)
		node := domain.NetworkNode{
			ID:    n.ID,
			Label: ix.Label(visit.Handle),
			Type:  n.Kind,
			Depth: visit.Depth,
		}
		if n.Kind == domain.KindCompany {
			node.RiskScore = snap.Verdicts[n.Ordinal].RiskScore
			node.RiskCategory = snap.Verdicts[n.Ordinal].Category
		}
		g.Nodes = append(g.Nodes, node)
	}
	for _, e := range sg.Edges {
		g.Edges = append(g.Edges, domain.NetworkEdge{
			Source:           ix.Node(e.Source).ID,
			Target:           ix.Node(e.Target).ID,
			RelationshipType: e.Type,
		})
	}
	return g, nil
}

// FraudClusters returns the suspicious communities of the installed dataset.
func (s *Service) FraudClusters(ctx context.Context) ([]domain.FraudCluster, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return append([]domain.FraudCluster{}, snap.Clusters...), nil
}
