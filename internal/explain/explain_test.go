package explain

import (
	"reflect"
	"strings"
	"testing"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
	"github.com/opensource-finance/tenderwatch/internal/metrics"
)

func fixture(t *testing.T) *Builder {
	t.Helper()
	rel := func(s, tg string, typ domain.RelationshipType) domain.Relationship {
		return domain.Relationship{SourceID: s, TargetID: tg, Type: typ}
	}
	ds := &domain.Dataset{
		Companies: []domain.Company{
			{ID: "COMP_0000", RegistrationYear: 2010, Address: "5 Dummy Street, Shell City 00000"},
			{ID: "COMP_0001", RegistrationYear: 2010, Address: "5 Dummy Street, Shell City 00000"},
			{ID: "COMP_0002", RegistrationYear: 2012, Address: "5 Dummy Street, Shell City 00000"},
			{ID: "COMP_0003", RegistrationYear: 2001, Address: "12 Oak St, Lakeside 3"},
		},
		Directors:   []domain.Director{{ID: "DIR_0000"}, {ID: "DIR_0001"}},
		Tenders:     []domain.Tender{{ID: "TEND_0000", DepartmentID: "DEPT_00", ContractValue: 900000, WinningCompanyID: "COMP_0000"}},
		Departments: []domain.Department{{ID: "DEPT_00"}},
		Relationships: []domain.Relationship{
			rel("DIR_0000", "COMP_0000", domain.RelDirectorOf),
			rel("DIR_0000", "COMP_0001", domain.RelDirectorOf),
			rel("DIR_0000", "COMP_0002", domain.RelDirectorOf),
			rel("DIR_0001", "COMP_0003", domain.RelDirectorOf),
			rel("COMP_0000", "TEND_0000", domain.RelBiddedFor),
			rel("COMP_0001", "TEND_0000", domain.RelBiddedFor),
			rel("COMP_0000", "TEND_0000", domain.RelWon),
			rel("TEND_0000", "DEPT_00", domain.RelIssuedBy),
		},
	}
	ix, err := graph.Build(ds)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	verdicts := []domain.Verdict{
		{
			CompanyID: "COMP_0000", RiskScore: 0.7, Category: domain.RiskHigh, Confidence: 0.7,
			Escalated: true, EscalationReason: "tender_pattern_score 0.75 at or above critical threshold 0.70",
			Factors:  domain.FactorScores{SharedDirector: 1, TenderPattern: 0.75, Centrality: 0.67, Shell: 0.25},
			Evidence: domain.Evidence{DirectorCount: 1, SharedCompanyCount: 2, BidCount: 1, WonCount: 1, WonValue: 900000, AvgValueRatio: 1, ShellGroupSize: 1, SharedAddressOnly: 1},
		},
		{CompanyID: "COMP_0001", RiskScore: 0.8, Category: domain.RiskHigh},
		{CompanyID: "COMP_0002", RiskScore: 0.1, Category: domain.RiskLow},
		{CompanyID: "COMP_0003", RiskScore: 0.1, Category: domain.RiskLow},
	}
	return NewBuilder(ix, metrics.Compute(ix, metrics.DefaultResolution), verdicts, 0)
}

func TestRecommendation(t *testing.T) {
	tests := []struct {
		category domain.RiskCategory
		prefix   string
	}{
		{domain.RiskHigh, "IMMEDIATE INVESTIGATION RECOMMENDED"},
		{domain.RiskMedium, "MONITORING REQUIRED"},
		{domain.RiskLow, "STANDARD MONITORING"},
		{"", "STANDARD MONITORING"},
	}
	for _, tt := range tests {
		if got := Recommendation(tt.category); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("Recommendation(%q) = %q", tt.category, got)
		}
	}
}

func TestEvidenceDescriptions(t *testing.T) {
	b := fixture(t)

	tests := []struct {
		rule string
		want string
	}{
		{domain.RuleSharedDirectors, "shares director DIR_0000 with 2 other companies; 1 of them also bid on TEND_0000"},
		{domain.RuleSuspiciousWins, "won 1 of 1 bids; won contracts average 1.00x the issuing department's mean (largest TEND_0000 at 900000)"},
		{domain.RuleNetworkCentrality, "linked to 1 directors, more than 67% of companies"},
		{domain.RuleShellCompany, `shares registration year 2010 and address "5 Dummy Street, Shell City 00000" with 1 other companies; 1 more share the address only`},
		{domain.RuleHighValueWinner, "won 1 contracts worth 900000 in total at 1.00x the issuing department's mean"},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			if got := b.describe(0, domain.RuleHit{RuleID: tt.rule}); got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}

	t.Run("custom rule", func(t *testing.T) {
		got := b.describe(0, domain.RuleHit{RuleID: "custom", Reason: "many bids", Value: 1})
		if got != "many bids (1.00)" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("no shared director", func(t *testing.T) {
		if got := b.sharedDirectors(3); got != "no directors shared with other companies" {
			t.Errorf("got %q", got)
		}
	})
}

func TestSuspiciousConnections(t *testing.T) {
	b := fixture(t)

	if got := b.SuspiciousConnections(0); !reflect.DeepEqual(got, []string{"COMP_0001"}) {
		t.Errorf("expected [COMP_0001], got %v", got)
	}
	if got := b.SuspiciousConnections(3); len(got) != 0 {
		t.Errorf("isolated company should have no suspicious connections, got %v", got)
	}

	b.maxSuspicious = 1
	b.verdicts[2].Category = domain.RiskHigh
	if got := b.SuspiciousConnections(0); len(got) != 1 {
		t.Errorf("expected the cap to apply, got %v", got)
	}
}

func TestSummary(t *testing.T) {
	b := fixture(t)
	hits := []domain.RuleHit{
		{RuleID: domain.RuleSharedDirectors, Name: "Shared Directors", Severity: domain.SeverityHigh},
		{RuleID: domain.RuleSuspiciousWins, Name: "Suspicious Win Pattern", Severity: domain.SeverityHigh},
	}

	s := b.Summary(0, hits)
	if s.EntityID != "COMP_0000" || s.EntityType != domain.KindCompany {
		t.Errorf("unexpected identity: %s %s", s.EntityID, s.EntityType)
	}
	if s.RiskCategory != domain.RiskHigh || s.Recommendation != RecommendHigh {
		t.Errorf("unexpected category/recommendation: %s %q", s.RiskCategory, s.Recommendation)
	}
	if len(s.RiskIndicators) != 2 || s.RiskIndicators[0].Indicator != "Shared Directors" {
		t.Fatalf("unexpected indicators: %+v", s.RiskIndicators)
	}
	if len(s.KeyFindings) != 3 {
		t.Fatalf("expected 2 findings plus escalation, got %v", s.KeyFindings)
	}
	if !strings.HasPrefix(s.KeyFindings[0], "Shared Directors: shares director DIR_0000") {
		t.Errorf("unexpected finding: %q", s.KeyFindings[0])
	}
	if !strings.HasPrefix(s.KeyFindings[2], "Escalation: ") {
		t.Errorf("expected escalation finding, got %q", s.KeyFindings[2])
	}

	if again := b.Summary(0, hits); !reflect.DeepEqual(s, again) {
		t.Error("summary is not deterministic")
	}
}
