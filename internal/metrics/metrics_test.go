package metrics

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/generator"
	"github.com/opensource-finance/tenderwatch/internal/graph"
)

func TestPercentileRanks(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   []float64
	}{
		{"empty", nil, []float64{}},
		{"single", []int{5}, []float64{0}},
		{"ties share a rank", []int{1, 2, 2, 3}, []float64{0, 1.0 / 3, 1.0 / 3, 1}},
		{"all equal", []int{4, 4, 4}, []float64{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentileRanks(tt.values)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d ranks, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("rank[%d] = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// projectionOf builds a projection from co-bid counts.
func projectionOf(n int, links map[[2]int]int) *Projection {
	p := &Projection{adj: make([][]Link, n)}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			w, ok := links[[2]int{a, b}]
			if !ok {
				continue
			}
			p.adj[a] = append(p.adj[a], Link{To: b, CoBids: w})
			p.adj[b] = append(p.adj[b], Link{To: a, CoBids: w})
		}
	}
	return p
}

func TestLouvainSeparatesCliques(t *testing.T) {
	links := map[[2]int]int{}
	for _, clique := range [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}} {
		for i := 0; i < len(clique); i++ {
			for j := i + 1; j < len(clique); j++ {
				links[[2]int{clique[i], clique[j]}] = 3
			}
		}
	}
	links[[2]int{3, 4}] = 1
	p := projectionOf(9, links) // node 8 is isolated

	got := Louvain(p, DefaultResolution)
	want := []int{0, 0, 0, 0, 1, 1, 1, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("communities = %v, want %v", got, want)
	}
	if q := Modularity(p, got); q < 0.4 {
		t.Errorf("modularity = %f, expected a strong partition", q)
	}
	if again := Louvain(p, DefaultResolution); !reflect.DeepEqual(got, again) {
		t.Error("louvain is not deterministic")
	}
}

func TestProjectCompanies(t *testing.T) {
	rel := func(s, t string, typ domain.RelationshipType) domain.Relationship {
		return domain.Relationship{SourceID: s, TargetID: t, Type: typ}
	}
	ds := &domain.Dataset{
		Companies:   []domain.Company{{ID: "COMP_0000"}, {ID: "COMP_0001"}, {ID: "COMP_0002"}},
		Directors:   []domain.Director{{ID: "DIR_0000"}, {ID: "DIR_0001"}},
		Tenders:     []domain.Tender{{ID: "TEND_0000"}},
		Departments: []domain.Department{{ID: "DEPT_00"}},
		Relationships: []domain.Relationship{
			rel("DIR_0000", "COMP_0000", domain.RelDirectorOf),
			rel("DIR_0000", "COMP_0001", domain.RelDirectorOf),
			rel("DIR_0001", "COMP_0000", domain.RelDirectorOf),
			rel("DIR_0001", "COMP_0001", domain.RelDirectorOf),
			rel("COMP_0001", "TEND_0000", domain.RelBiddedFor),
			rel("COMP_0002", "TEND_0000", domain.RelBiddedFor),
			rel("COMP_0000", "TEND_0000", domain.RelBiddedFor),
		},
	}
	ix, err := graph.Build(ds)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p := ProjectCompanies(ix)

	links := p.Links(0)
	if len(links) != 2 {
		t.Fatalf("expected 2 links for COMP_0000, got %d", len(links))
	}
	if links[0].To != 1 || links[0].SharedDirectors != 2 || links[0].CoBids != 1 || links[0].Weight() != 3 {
		t.Errorf("unexpected link 0-1: %+v", links[0])
	}
	if links[1].To != 2 || links[1].SharedDirectors != 0 || links[1].CoBids != 1 {
		t.Errorf("unexpected link 0-2: %+v", links[1])
	}
	if n := p.SharedDirectorPeers(0); n != 1 {
		t.Errorf("shared director peers = %d, want 1", n)
	}
	if n := p.SharedDirectorPeers(2); n != 0 {
		t.Errorf("shared director peers = %d, want 0", n)
	}
}

func TestProlificDirectorsRankAboveNinetiethPercentile(t *testing.T) {
	res, err := generator.Generate(context.Background(), domain.DefaultGeneratorConfig())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ix, err := graph.Build(res.Dataset)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	c := BipartiteCentrality(ix)

	checked := 0
	for _, fp := range res.Footprints {
		if fp.Pattern != generator.PatternProlificDirector {
			continue
		}
		h, _ := ix.Lookup(fp.Directors[0])
		if c.Degree[h] < 15 {
			t.Errorf("%s degree %d", fp.Directors[0], c.Degree[h])
		}
		if c.Percentile[h] <= 0.9 {
			t.Errorf("%s percentile %f, want above 0.9", fp.Directors[0], c.Percentile[h])
		}
		checked++
	}
	if checked == 0 {
		t.Fatal("no prolific directors generated")
	}

	for _, h := range ix.Handles(domain.KindTender) {
		if c.Percentile[h] != 0 || c.Degree[h] != 0 {
			t.Fatal("tenders must not carry bipartite centrality")
		}
	}
}

func TestLouvainResolution(t *testing.T) {
	// ten triangles joined into a ring by single edges
	const triangles = 10
	links := map[[2]int]int{}
	for k := 0; k < triangles; k++ {
		a, b, c := 3*k, 3*k+1, 3*k+2
		links[[2]int{a, b}] = 1
		links[[2]int{a, c}] = 1
		links[[2]int{b, c}] = 1
		next := (3 * (k + 1)) % (3 * triangles)
		links[[2]int{min(c, next), max(c, next)}] = 1
	}
	p := projectionOf(3*triangles, links)

	coarse := Louvain(p, 1)
	if coarse[0] != coarse[3] {
		t.Errorf("resolution 1 should merge neighbouring triangles: %v", coarse)
	}

	fine := Louvain(p, DefaultResolution)
	for i, c := range fine {
		if c != i/3 {
			t.Fatalf("resolution %.1f should keep each triangle apart: %v", DefaultResolution, fine)
		}
	}

	if got := Louvain(p, 0); !reflect.DeepEqual(got, fine) {
		t.Error("non-positive resolution should fall back to the default")
	}
}

func TestFraudClusters(t *testing.T) {
	ds := &domain.Dataset{
		Companies: []domain.Company{
			{ID: "COMP_0000", FraudLabel: 1}, {ID: "COMP_0001", FraudLabel: 1}, {ID: "COMP_0002"},
			{ID: "COMP_0003"}, {ID: "COMP_0004"}, {ID: "COMP_0005"},
		},
		Tenders:     []domain.Tender{{ID: "TEND_0000", ContractValue: 300000}, {ID: "TEND_0001", ContractValue: 100000}},
		Departments: []domain.Department{{ID: "DEPT_00"}},
		Relationships: []domain.Relationship{
			{SourceID: "COMP_0000", TargetID: "TEND_0000", Type: domain.RelWon},
			{SourceID: "COMP_0001", TargetID: "TEND_0001", Type: domain.RelWon},
		},
	}
	ix, err := graph.Build(ds)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	communities := []int{0, 0, 0, 1, 1, 1}
	verdicts := []domain.Verdict{
		{RiskScore: 0.8, Category: domain.RiskHigh},
		{RiskScore: 0.5, Category: domain.RiskMedium},
		{RiskScore: 0.2, Category: domain.RiskLow},
		{RiskScore: 0.5, Category: domain.RiskMedium},
		{RiskScore: 0.5, Category: domain.RiskMedium},
		{RiskScore: 0.1, Category: domain.RiskLow},
	}

	// community 1 is mostly Medium but unlabeled
	clusters := FraudClusters(ix, communities, verdicts, 3)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.ClusterID != 0 || c.Size != 3 || c.HighRiskCount != 1 {
		t.Errorf("unexpected cluster: %+v", c)
	}
	if math.Abs(c.AvgRiskScore-0.5) > 1e-9 {
		t.Errorf("avg risk = %f, want 0.5", c.AvgRiskScore)
	}
	if c.AvgContractValue != 200000 {
		t.Errorf("avg contract value = %f, want 200000", c.AvgContractValue)
	}
	if math.Abs(c.LabeledShare-2.0/3) > 1e-9 {
		t.Errorf("labeled share = %f", c.LabeledShare)
	}

	if got := FraudClusters(ix, communities, verdicts, 4); len(got) != 0 {
		t.Errorf("min size 4 should drop every cluster, got %d", len(got))
	}
}
