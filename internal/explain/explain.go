// Package explain turns verdicts and fired indicator rules into
// evidence-bearing risk indicators, key findings and a recommendation.
package explain

import (
	"fmt"

	"github.com/opensource-finance/tenderwatch/internal/domain"
	"github.com/opensource-finance/tenderwatch/internal/graph"
	"github.com/opensource-finance/tenderwatch/internal/metrics"
)

// Recommendations keyed by risk category.
const (
	RecommendHigh   = "IMMEDIATE INVESTIGATION RECOMMENDED: High-risk indicators detected. Recommend full audit and cross-reference with procurement records."
	RecommendMedium = "MONITORING REQUIRED: Medium-risk indicators present. Recommend enhanced due diligence and periodic review."
	RecommendLow    = "STANDARD MONITORING: Low-risk profile. Continue routine oversight."
)

const defaultMaxSuspicious = 10

// Recommendation returns the recommendation text for a category.
func Recommendation(c domain.RiskCategory) string {
	switch c {
	case domain.RiskHigh:
		return RecommendHigh
	case domain.RiskMedium:
		return RecommendMedium
	}
	return RecommendLow
}

// Builder explains verdicts of one frozen graph. verdicts is indexed by
// company ordinal.
type Builder struct {
	ix            *graph.Index
	projection    *metrics.Projection
	verdicts      []domain.Verdict
	maxSuspicious int
}

// NewBuilder creates a builder over a scored graph.
func NewBuilder(ix *graph.Index, m *metrics.Result, verdicts []domain.Verdict, maxSuspicious int) *Builder {
	if maxSuspicious <= 0 {
		maxSuspicious = defaultMaxSuspicious
	}
	return &Builder{
		ix:            ix,
		projection:    m.Projection,
		verdicts:      verdicts,
		maxSuspicious: maxSuspicious,
	}
}

// Indicators converts the fired rules of company c into risk indicators,
// in rule order.
func (b *Builder) Indicators(c int, hits []domain.RuleHit) []domain.RiskIndicator {
	out := make([]domain.RiskIndicator, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.RiskIndicator{
			Indicator:   h.Name,
			Severity:    h.Severity,
			Description: b.describe(c, h),
		})
	}
	return out
}

// KeyFindings renders one line per indicator, followed by the escalation
// reason when the verdict was escalated.
func KeyFindings(v domain.Verdict, indicators []domain.RiskIndicator) []string {
	out := make([]string, 0, len(indicators)+1)
	for _, ind := range indicators {
		out = append(out, fmt.Sprintf("%s: %s", ind.Indicator, ind.Description))
	}
	if v.Escalated {
		out = append(out, "Escalation: "+v.EscalationReason)
	}
	return out
}

// SuspiciousConnections returns the companies linked to c by a shared
// director or a co-bid whose own category is High, in id order.
func (b *Builder) SuspiciousConnections(c int) []string {
	out := []string{}
	for _, l := range b.projection.Links(c) {
		if b.verdicts[l.To].Category != domain.RiskHigh {
			continue
		}
		out = append(out, b.verdicts[l.To].CompanyID)
		if len(out) == b.maxSuspicious {
			break
		}
	}
	return out
}

// Summary assembles the investigation summary of company c.
func (b *Builder) Summary(c int, hits []domain.RuleHit) domain.InvestigationSummary {
	v := b.verdicts[c]
	indicators := b.Indicators(c, hits)
	return domain.InvestigationSummary{
		EntityID:                    v.CompanyID,
		EntityType:                  domain.KindCompany,
		RiskScore:                   v.RiskScore,
		RiskCategory:                v.Category,
		Confidence:                  v.Confidence,
		KeyFindings:                 KeyFindings(v, indicators),
		RiskIndicators:              indicators,
		ConnectedSuspiciousEntities: b.SuspiciousConnections(c),
		Recommendation:              Recommendation(v.Category),
	}
}
