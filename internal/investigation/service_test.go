package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/opensource-finance/tenderwatch/internal/bus"
	"github.com/opensource-finance/tenderwatch/internal/cache"
	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/generator"
	"github.com/opensource-finance/tenderwatch/internal/graph"
	"github.com/opensource-finance/tenderwatch/internal/repository"
	"github.com/opensource-finance/tenderwatch/internal/rules"
	"github.com/opensource-finance/tenderwatch/internal/telemetry"
)

func newTestService(t *testing.T, deps Deps) *Service {
	t.Helper()
	engine, err := rules.NewDefaultEngine(domain.DefaultScoringConfig())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return NewService(domain.DefaultConfig(), engine, deps)
}

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "tenderwatch-investigation-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func containsAll(set, ids []string) bool {
	in := make(map[string]bool, len(set))
	for _, id := range set {
		in[id] = true
	}
	for _, id := range ids {
		if !in[id] {
			return false
		}
	}
	return true
}

func TestNoSnapshot(t *testing.T) {
	svc := newTestService(t, Deps{})
	ctx := context.Background()

	if svc.Ready() {
		t.Error("service must not be ready before a dataset is installed")
	}
	if _, err := svc.DashboardStats(ctx); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Errorf("DashboardStats: expected ErrNoSnapshot, got %v", err)
	}
	if _, err := svc.ListCompanies(ctx, "", 10); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Errorf("ListCompanies: expected ErrNoSnapshot, got %v", err)
	}
	if _, err := svc.CompanyDetail(ctx, "COMP_0000"); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Errorf("CompanyDetail: expected ErrNoSnapshot, got %v", err)
	}
	if _, err := svc.NetworkGraph(ctx, "", 0); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Errorf("NetworkGraph: expected ErrNoSnapshot, got %v", err)
	}
	if _, err := svc.FraudClusters(ctx); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Errorf("FraudClusters: expected ErrNoSnapshot, got %v", err)
	}
	if err := svc.Reload(ctx, "any"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Reload without repository: expected ErrInvalidInput, got %v", err)
	}
}

func TestQueries(t *testing.T) {
	mem, _ := cache.New(domain.CacheConfig{Type: "memory", LocalMaxSize: 1000, LocalTTL: 60})
	svc := newTestService(t, Deps{Cache: mem, Metrics: telemetry.New()})
	ctx := context.Background()

	rec, err := svc.Regenerate(ctx, domain.DefaultSeed, "job-1")
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	snap, _ := svc.Snapshot()

	t.Run("DashboardStats", func(t *testing.T) {
		st, err := svc.DashboardStats(ctx)
		if err != nil {
			t.Fatalf("DashboardStats failed: %v", err)
		}
		if st.DatasetID != rec.ID {
			t.Errorf("expected dataset %s, got %s", rec.ID, st.DatasetID)
		}
		if st.TotalCompanies != 500 || st.TotalDirectors != 200 || st.TotalTenders != 150 || st.TotalDepartments != 20 {
			t.Errorf("unexpected totals: %+v", st)
		}
		if st.TotalEntities != 870 {
			t.Errorf("expected 870 entities, got %d", st.TotalEntities)
		}
		total := 0
		for _, n := range st.RiskDistribution {
			total += n
		}
		if total != 500 {
			t.Errorf("risk distribution covers %d companies, want 500", total)
		}
		if st.HighRiskCount != st.RiskDistribution[domain.RiskHigh] || st.HighRiskCount == 0 {
			t.Errorf("unexpected high risk count %d", st.HighRiskCount)
		}
		if st.TotalContractValue != rec.Summary.TotalContractValue {
			t.Errorf("expected contract value %d, got %d", rec.Summary.TotalContractValue, st.TotalContractValue)
		}
	})

	t.Run("ListCompanies", func(t *testing.T) {
		list, err := svc.ListCompanies(ctx, "", 0)
		if err != nil {
			t.Fatalf("ListCompanies failed: %v", err)
		}
		if len(list) != 100 {
			t.Errorf("expected the default limit of 100, got %d", len(list))
		}
		ordered := sort.SliceIsSorted(list, func(i, j int) bool {
			if list[i].RiskScore != list[j].RiskScore {
				return list[i].RiskScore > list[j].RiskScore
			}
			return list[i].CompanyID < list[j].CompanyID
		})
		if !ordered {
			t.Error("companies are not ordered by risk then id")
		}

		high, _ := svc.ListCompanies(ctx, "High", 5)
		if len(high) == 0 || len(high) > 5 {
			t.Fatalf("expected 1..5 High companies, got %d", len(high))
		}
		for _, c := range high {
			if c.RiskCategory != domain.RiskHigh {
				t.Errorf("%s: expected High, got %s", c.CompanyID, c.RiskCategory)
			}
		}

		all, _ := svc.ListCompanies(ctx, "", 10_000)
		if len(all) != 500 {
			t.Errorf("expected the limit to clamp to 500, got %d", len(all))
		}
		one, _ := svc.ListCompanies(ctx, "", -4)
		if len(one) != 1 {
			t.Errorf("expected the limit to clamp to 1, got %d", len(one))
		}

		if _, err := svc.ListCompanies(ctx, "Severe", 10); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("CompanyDetail", func(t *testing.T) {
		id := snap.Verdicts[snap.Ranked[0]].CompanyID
		first, err := svc.CompanyDetail(ctx, id)
		if err != nil {
			t.Fatalf("CompanyDetail failed: %v", err)
		}
		second, err := svc.CompanyDetail(ctx, id)
		if err != nil {
			t.Fatalf("second CompanyDetail failed: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Error("company detail is not idempotent")
		}
		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		if string(a) != string(b) {
			t.Error("company detail JSON differs between calls")
		}

		if first.EntityID != id || first.RiskCategory != domain.RiskHigh {
			t.Errorf("unexpected detail: %s %s", first.EntityID, first.RiskCategory)
		}
		if len(first.ConnectedEntities) == 0 {
			t.Error("expected connected entities")
		}
		if len(first.Contributions) != 4 {
			t.Errorf("expected 4 factor contributions, got %d", len(first.Contributions))
		}
	})

	t.Run("LookupErrors", func(t *testing.T) {
		if _, err := svc.CompanyDetail(ctx, "COMP_9999"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := svc.CompanyDetail(ctx, "DIR_0000"); !errors.Is(err, domain.ErrNoScore) {
			t.Errorf("expected ErrNoScore, got %v", err)
		}
		if _, err := svc.InvestigationSummary(ctx, "TEND_0000"); !errors.Is(err, domain.ErrNoScore) {
			t.Errorf("expected ErrNoScore, got %v", err)
		}
		if _, err := svc.NetworkGraph(ctx, "COMP_9999", 2); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("NetworkGraphBounds", func(t *testing.T) {
		for _, c := range snap.Ranked[:25] {
			id := snap.Verdicts[c].CompanyID
			g, err := svc.NetworkGraph(ctx, id, 2)
			if err != nil {
				t.Fatalf("NetworkGraph(%s) failed: %v", id, err)
			}
			if len(g.Nodes) > 50 {
				t.Errorf("%s: %d nodes exceed the cap", id, len(g.Nodes))
			}
			seed, _ := snap.Index.Lookup(id)
			within := make(map[graph.Handle]bool)
			for _, v := range snap.Index.Traverse([]graph.Handle{seed}, 2, snap.Index.Len()).Nodes {
				within[v.Handle] = true
			}
			for _, n := range g.Nodes {
				h, _ := snap.Index.Lookup(n.ID)
				if n.Depth > 2 {
					t.Errorf("%s: node %s at depth %d", id, n.ID, n.Depth)
				}
				if !within[h] {
					t.Errorf("%s: node %s is farther than 2 hops", id, n.ID)
				}
			}
		}

		g, _ := svc.NetworkGraph(ctx, "", 0)
		if len(g.Seeds) != 20 || g.Depth != 2 {
			t.Errorf("expected 20 default seeds at depth 2, got %d at %d", len(g.Seeds), g.Depth)
		}
		if g.Seeds[0] != snap.Verdicts[snap.Ranked[0]].CompanyID {
			t.Errorf("expected the riskiest company first, got %s", g.Seeds[0])
		}

		if g, _ := svc.NetworkGraph(ctx, "DEPT_00", 99); g.Depth != 4 {
			t.Errorf("expected depth to clamp to 4, got %d", g.Depth)
		}
		if g, _ := svc.NetworkGraph(ctx, "DEPT_00", -1); g.Depth != 1 {
			t.Errorf("expected depth to clamp to 1, got %d", g.Depth)
		}
	})

	t.Run("HighValueWinnerInvestigation", func(t *testing.T) {
		found := 0
		for _, v := range snap.Verdicts {
			if v.Evidence.WonCount < 5 {
				continue
			}
			found++
			summary, err := svc.InvestigationSummary(ctx, v.CompanyID)
			if err != nil {
				t.Fatalf("InvestigationSummary(%s) failed: %v", v.CompanyID, err)
			}
			if summary.RiskScore < 0.70 || summary.RiskCategory != domain.RiskHigh {
				t.Errorf("%s: expected High at >= 0.70, got %s %.2f", v.CompanyID, summary.RiskCategory, summary.RiskScore)
			}
			hasIndicator := false
			for _, ind := range summary.RiskIndicators {
				if ind.Indicator == "High-Value Contract Winner" {
					hasIndicator = true
				}
			}
			if !hasIndicator {
				t.Errorf("%s: missing High-Value Contract Winner indicator: %+v", v.CompanyID, summary.RiskIndicators)
			}
			if len(summary.ConnectedSuspiciousEntities) > 10 {
				t.Errorf("%s: too many suspicious connections", v.CompanyID)
			}
		}
		if found < 5 {
			t.Errorf("expected at least 5 high-value winners, found %d", found)
		}
	})

	t.Run("FraudClusters", func(t *testing.T) {
		clusters, err := svc.FraudClusters(ctx)
		if err != nil {
			t.Fatalf("FraudClusters failed: %v", err)
		}
		if len(clusters) == 0 {
			t.Fatal("expected at least one fraud cluster for the default seed")
		}
		for _, c := range clusters {
			if c.Size < 3 || len(c.Members) != c.Size {
				t.Errorf("cluster %d: bad size %d (%d members)", c.ClusterID, c.Size, len(c.Members))
			}
			if c.LabeledShare <= 0.5 {
				t.Errorf("cluster %d: labeled share %.2f", c.ClusterID, c.LabeledShare)
			}
		}

		// a collusive ring should land inside one detected cluster
		res, err := generator.Generate(ctx, domain.DefaultGeneratorConfig())
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		contained := false
		for _, fp := range res.Footprints {
			if fp.Pattern != generator.PatternCollusiveCluster {
				continue
			}
			for _, c := range clusters {
				if containsAll(c.Members, fp.Companies) {
					contained = true
				}
			}
		}
		if !contained {
			t.Error("no fraud cluster contains a whole collusive ring")
		}

		st, _ := svc.DashboardStats(ctx)
		if st.FraudClusterCount != len(clusters) {
			t.Errorf("dashboard reports %d clusters, list has %d", st.FraudClusterCount, len(clusters))
		}
	})

	t.Run("ReportCached", func(t *testing.T) {
		id := snap.Verdicts[snap.Ranked[1]].CompanyID
		if _, err := svc.CompanyDetail(ctx, id); err != nil {
			t.Fatalf("CompanyDetail failed: %v", err)
		}
		cached, err := mem.Get(ctx, rec.ID, "detail:"+id)
		if err != nil || cached == nil {
			t.Errorf("expected the report under the dataset namespace, got %v %v", cached, err)
		}
	})
}

func TestBootstrapAndReload(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := newTestService(t, Deps{Repo: repo})
	if err := first.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap on an empty store failed: %v", err)
	}
	rec, err := first.Dataset(ctx)
	if err != nil {
		t.Fatalf("Dataset failed: %v", err)
	}
	if rec.Seed != domain.DefaultSeed {
		t.Errorf("expected seed %d, got %d", domain.DefaultSeed, rec.Seed)
	}

	second := newTestService(t, Deps{Repo: repo})
	if err := second.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap from store failed: %v", err)
	}
	got, _ := second.Dataset(ctx)
	if got.ID != rec.ID {
		t.Errorf("expected the stored dataset %s, got %s", rec.ID, got.ID)
	}

	a, _ := first.Snapshot()
	b, _ := second.Snapshot()
	if !reflect.DeepEqual(a.Verdicts, b.Verdicts) {
		t.Error("reloaded verdicts differ from the generated ones")
	}
	if !reflect.DeepEqual(a.Ranked, b.Ranked) {
		t.Error("reloaded ranking differs")
	}

	if err := second.Reload(ctx, rec.ID); err != nil {
		t.Errorf("reloading the installed dataset should be a no-op, got %v", err)
	}
	if err := second.Reload(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// A regeneration on the first node becomes visible to the second by id.
	next, err := first.Regenerate(ctx, 7, "")
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if err := second.Reload(ctx, next.ID); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got, _ := second.Dataset(ctx); got.ID != next.ID || got.Seed != 7 {
		t.Errorf("expected dataset %s seed 7, got %s seed %d", next.ID, got.ID, got.Seed)
	}
}

func TestRegenerateAnnouncesSwap(t *testing.T) {
	b := bus.NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	events := make(chan domain.SwapEvent, 1)
	_, err := b.Subscribe(ctx, domain.TopicSwapped, func(ctx context.Context, msg *domain.Message) error {
		var ev domain.SwapEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return err
		}
		events <- ev
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	svc := newTestService(t, Deps{Bus: b})
	rec, err := svc.Regenerate(ctx, 11, "job-42")
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.DatasetID != rec.ID || ev.JobID != "job-42" || ev.Seed != 11 || ev.Origin != svc.NodeID() {
			t.Errorf("unexpected swap event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no swap event received")
	}
}

func TestRegenerateFailureKeepsSnapshot(t *testing.T) {
	svc := newTestService(t, Deps{})
	ctx := context.Background()

	if _, err := svc.Regenerate(ctx, 1, ""); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	before, _ := svc.Dataset(ctx)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := svc.Regenerate(cancelled, 2, ""); err == nil {
		t.Fatal("expected a cancelled regeneration to fail")
	}
	after, _ := svc.Dataset(ctx)
	if after.ID != before.ID {
		t.Error("a failed regeneration must not swap the snapshot")
	}
}

func TestReloadRules(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeRules := func(expression string) {
		t.Helper()
		content := "rules:\n" +
			"  - id: busy-winner\n" +
			"    name: Busy Winner\n" +
			"    expression: \"" + expression + "\"\n" +
			"    enabled: true\n" +
			"    bands:\n" +
			"      - lowerLimit: 1.0\n" +
			"        severity: High\n" +
			"        reason: wins many tenders\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write rules: %v", err)
		}
	}
	writeRules("won_count >= 5 ? 1.0 : 0.0")

	cfg := domain.DefaultConfig()
	cfg.Scoring.RulesFile = path
	engine, err := rules.NewDefaultEngine(cfg.Scoring)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	mem, _ := cache.New(domain.CacheConfig{Type: "memory", LocalMaxSize: 1000, LocalTTL: 60})
	svc := NewService(cfg, engine, Deps{Cache: mem})

	rec, err := svc.Regenerate(ctx, domain.DefaultSeed, "")
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	before, _ := svc.Snapshot()
	busy := -1
	for c, v := range before.Verdicts {
		if v.Evidence.WonCount >= 5 {
			busy = c
			break
		}
	}
	if busy < 0 {
		t.Fatal("no company wins five tenders")
	}
	if len(before.Hits[busy]) != 1 || before.Hits[busy][0].RuleID != "busy-winner" {
		t.Fatalf("expected busy-winner to fire, got %+v", before.Hits[busy])
	}
	id := before.Verdicts[busy].CompanyID
	if _, err := svc.CompanyDetail(ctx, id); err != nil {
		t.Fatalf("CompanyDetail failed: %v", err)
	}

	writeRules("won_count >= 100 ? 1.0 : 0.0")
	count, err := svc.ReloadRules(ctx)
	if err != nil || count != 1 {
		t.Fatalf("ReloadRules = %d, %v", count, err)
	}
	after, _ := svc.Snapshot()
	if after.Record.ID != rec.ID {
		t.Errorf("reload must keep dataset %s, got %s", rec.ID, after.Record.ID)
	}
	if len(after.Hits[busy]) != 0 {
		t.Errorf("expected no hits after reload, got %+v", after.Hits[busy])
	}
	if !reflect.DeepEqual(before.Verdicts, after.Verdicts) {
		t.Error("reload must not rescore verdicts")
	}
	if after.namespace == before.namespace {
		t.Error("reload must move reports to a fresh cache namespace")
	}
	detail, err := svc.CompanyDetail(ctx, id)
	if err != nil {
		t.Fatalf("CompanyDetail after reload failed: %v", err)
	}
	for _, ind := range detail.RiskIndicators {
		if ind.Indicator == "Busy Winner" {
			t.Errorf("stale indicator served after reload: %+v", ind)
		}
	}

	t.Run("invalid file keeps rules", func(t *testing.T) {
		writeRules("won_count >")
		if _, err := svc.ReloadRules(ctx); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		loaded := svc.Rules()
		if len(loaded) != 1 || loaded[0].Expression != "won_count >= 100 ? 1.0 : 0.0" {
			t.Errorf("previous rules must stay loaded, got %+v", loaded)
		}
	})
}
