package domain

// IndicatorRule turns verdict measurements into a named risk indicator.
type IndicatorRule struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`

	// Factor is the scoring factor the indicator explains (may be empty).
	Factor string `json:"factor,omitempty" yaml:"factor"`

	// CEL expression returning bool, int or double
	Expression string `json:"expression" yaml:"expression"`

	// Severity bands over the expression value. No matching band means
	// the indicator does not fire.
	Bands []RuleBand `json:"bands" yaml:"bands"`

	Enabled bool `json:"enabled" yaml:"enabled"`
}

// RuleBand maps a value range to a severity.
// LowerLimit is inclusive, UpperLimit exclusive; nil means unbounded.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty" yaml:"lowerLimit"`
	UpperLimit *float64 `json:"upperLimit,omitempty" yaml:"upperLimit"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Reason     string   `json:"reason" yaml:"reason"`
}

// RuleHit is a fired indicator rule.
type RuleHit struct {
	RuleID   string   `json:"ruleId"`
	Name     string   `json:"name"`
	Factor   string   `json:"factor,omitempty"`
	Value    float64  `json:"value"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
}

// Built-in indicator rule ids.
const (
	RuleSharedDirectors   = "shared-directors"
	RuleSuspiciousWins    = "suspicious-win-pattern"
	RuleNetworkCentrality = "high-network-centrality"
	RuleShellCompany      = "shell-company"
	RuleHighValueWinner   = "high-value-winner"
)
