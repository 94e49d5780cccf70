package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

func limit(v float64) *float64 { return &v }

// bands builds the usual two-step severity ladder.
func bands(medium, high float64, mediumReason, highReason string) []domain.RuleBand {
	return []domain.RuleBand{
		{LowerLimit: limit(high), Severity: domain.SeverityHigh, Reason: highReason},
		{LowerLimit: limit(medium), UpperLimit: limit(high), Severity: domain.SeverityMedium, Reason: mediumReason},
	}
}

// BuiltinRules returns the default indicator rules, one per risk factor plus
// the high-value winner indicator.
func BuiltinRules() []*domain.IndicatorRule {
	return []*domain.IndicatorRule{
		{
			ID:          domain.RuleSharedDirectors,
			Name:        "Shared Directors",
			Description: "Company shares directors with an unusually large number of other companies",
			Version:     "1.0.0",
			Factor:      domain.FactorSharedDirector,
			Expression:  domain.FactorSharedDirector,
			Bands:       bands(0.3, 0.6, "director overlap above population norm", "director overlap far above population norm"),
			Enabled:     true,
		},
		{
			ID:          domain.RuleSuspiciousWins,
			Name:        "Suspicious Win Pattern",
			Description: "Abnormal win count or won contract values above the issuing department's mean",
			Version:     "1.0.0",
			Factor:      domain.FactorTenderPattern,
			Expression:  domain.FactorTenderPattern,
			Bands:       bands(0.4, 0.7, "elevated win pattern", "critical win pattern"),
			Enabled:     true,
		},
		{
			ID:          domain.RuleNetworkCentrality,
			Name:        "High Network Centrality",
			Description: "Company sits on a highly connected position of the director network",
			Version:     "1.0.0",
			Factor:      domain.FactorCentrality,
			Expression:  domain.FactorCentrality,
			Bands:       bands(0.5, 0.9, "above-median director connectivity", "top-decile director connectivity"),
			Enabled:     true,
		},
		{
			ID:          domain.RuleShellCompany,
			Name:        "Shell Company Indicators",
			Description: "Registration year and address shared with a group of other companies",
			Version:     "1.0.0",
			Factor:      domain.FactorShell,
			Expression:  domain.FactorShell,
			Bands:       bands(0.5, 0.8, "registration details shared with peers", "registration details shared with a large group"),
			Enabled:     true,
		},
		{
			ID:          domain.RuleHighValueWinner,
			Name:        "High-Value Contract Winner",
			Description: "Repeated wins of contracts valued above the issuing department's mean",
			Version:     "1.0.0",
			Factor:      domain.FactorTenderPattern,
			Expression:  "won_count >= 5 ? " + domain.FactorTenderPattern + " : 0.0",
			Bands:       bands(0.7, 0.85, "repeated high-value wins", "dominant high-value winner"),
			Enabled:     true,
		},
	}
}

// ruleFile is the YAML layout of an indicator rule file.
type ruleFile struct {
	Rules []*domain.IndicatorRule `yaml:"rules"`
}

// LoadFile reads indicator rules from a YAML file.
func LoadFile(path string) ([]*domain.IndicatorRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: rules file %s: %v", domain.ErrInvalidInput, path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("%w: rules file %s defines no rules", domain.ErrInvalidInput, path)
	}
	return f.Rules, nil
}

// Source returns the rules in cfg.RulesFile, or the built-in rules when no
// file is configured.
func Source(cfg domain.ScoringConfig) ([]*domain.IndicatorRule, error) {
	if cfg.RulesFile == "" {
		return BuiltinRules(), nil
	}
	return LoadFile(cfg.RulesFile)
}

// NewDefaultEngine builds an engine loaded with the rules Source returns.
// Every invalid rule is reported, not just the first.
func NewDefaultEngine(cfg domain.ScoringConfig) (*Engine, error) {
	engine, err := NewEngine(cfg.RuleWorkers)
	if err != nil {
		return nil, err
	}
	rules, err := Source(cfg)
	if err != nil {
		return nil, err
	}
	if err := engine.ValidateRules(rules); err != nil {
		return nil, err
	}
	if err := engine.LoadRules(rules); err != nil {
		return nil, err
	}
	return engine, nil
}
