package domain

// RiskCategory buckets a composite risk score.
type RiskCategory string

const (
	RiskHigh   RiskCategory = "High"
	RiskMedium RiskCategory = "Medium"
	RiskLow    RiskCategory = "Low"
)

// ParseRiskCategory accepts the canonical category names.
func ParseRiskCategory(s string) (RiskCategory, bool) {
	switch RiskCategory(s) {
	case RiskHigh, RiskMedium, RiskLow:
		return RiskCategory(s), true
	}
	return "", false
}

// Rank orders categories Low < Medium < High.
func (c RiskCategory) Rank() int {
	switch c {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	}
	return 0
}

// Factor names, shared by the scorer, the indicator rules and the API.
const (
	FactorSharedDirector = "shared_director_score"
	FactorTenderPattern  = "tender_pattern_score"
	FactorCentrality     = "centrality_score"
	FactorShell          = "shell_score"
)

// FactorScores holds the four per-company factor scores, each in [0,1].
type FactorScores struct {
	SharedDirector float64 `json:"shared_director_score"`
	TenderPattern  float64 `json:"tender_pattern_score"`
	Centrality     float64 `json:"centrality_score"`
	Shell          float64 `json:"shell_score"`
}

// Get returns the factor value by name.
func (f FactorScores) Get(name string) float64 {
	switch name {
	case FactorSharedDirector:
		return f.SharedDirector
	case FactorTenderPattern:
		return f.TenderPattern
	case FactorCentrality:
		return f.Centrality
	case FactorShell:
		return f.Shell
	}
	return 0
}

// FactorContribution shows how one factor contributed to the composite score.
type FactorContribution struct {
	Factor       string  `json:"factor"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"` // score * weight
}

// Evidence is the raw graph measurement behind the factor scores.
type Evidence struct {
	Degree             int     `json:"degree"`
	DirectorCount      int     `json:"director_count"`
	SharedCompanyCount int     `json:"shared_company_count"`
	BidCount           int     `json:"bid_count"`
	WonCount           int     `json:"won_count"`
	WonValue           int64   `json:"won_value"`
	AvgValueRatio      float64 `json:"avg_value_ratio"`
	ShellGroupSize     int     `json:"shell_group_size"`
	SharedAddressOnly  int     `json:"shared_address_only"`
}

// Verdict is the risk assessment of one company on one frozen graph.
type Verdict struct {
	CompanyID        string               `json:"company_id"`
	Factors          FactorScores         `json:"factors"`
	Contributions    []FactorContribution `json:"contributions"`
	Composite        float64              `json:"composite"`
	RiskScore        float64              `json:"risk_score"`
	Category         RiskCategory         `json:"risk_category"`
	Confidence       float64              `json:"confidence_score"`
	Escalated        bool                 `json:"escalated,omitempty"`
	EscalationReason string               `json:"escalation_reason,omitempty"`
	Evidence         Evidence             `json:"evidence"`
}

// Severity grades a risk indicator.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// RiskIndicator is a named, evidence-bearing reason behind a verdict.
type RiskIndicator struct {
	Indicator   string   `json:"indicator"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}
