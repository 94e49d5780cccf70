// Package rules provides the CEL-Go based indicator rule engine.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// Engine is the CEL-based indicator rule engine.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   []*CompiledRule // load order
	maxWorkers int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.IndicatorRule
	Program cel.Program
}

// NewEngine creates a new indicator rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// Factor scores plus the raw evidence behind them
	env, err := cel.NewEnv(
		cel.Variable(domain.FactorSharedDirector, cel.DoubleType),
		cel.Variable(domain.FactorTenderPattern, cel.DoubleType),
		cel.Variable(domain.FactorCentrality, cel.DoubleType),
		cel.Variable(domain.FactorShell, cel.DoubleType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("composite", cel.DoubleType),
		cel.Variable("degree", cel.IntType),
		cel.Variable("director_count", cel.IntType),
		cel.Variable("shared_company_count", cel.IntType),
		cel.Variable("bid_count", cel.IntType),
		cel.Variable("won_count", cel.IntType),
		cel.Variable("won_value", cel.IntType),
		cel.Variable("avg_value_ratio", cel.DoubleType),
		cel.Variable("shell_group_size", cel.IntType),
		cel.Variable("shared_address_only", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		maxWorkers: maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.IndicatorRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// ValidateRules validates every enabled rule and reports all failures at
// once, wrapped in domain.ErrInvalidInput.
func (e *Engine) ValidateRules(configs []*domain.IndicatorRule) error {
	var errs []error
	for _, cfg := range configs {
		if cfg == nil || !cfg.Enabled {
			continue
		}
		if err := e.ValidateRule(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// LoadRule compiles and loads a rule into the engine. A rule with the same
// id replaces the loaded one in place.
func (e *Engine) LoadRule(cfg *domain.IndicatorRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	for i, r := range e.compiled {
		if r.Config.ID == cfg.ID {
			e.compiled[i] = compiled
			return nil
		}
	}
	e.compiled = append(e.compiled, compiled)
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.IndicatorRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones. On error the
// previous rule set stays loaded.
func (e *Engine) ReloadRules(configs []*domain.IndicatorRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make([]*CompiledRule, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		next = append(next, compiled)
	}

	e.compiled = next
	return nil
}

// Activation maps a verdict onto the CEL variables.
func Activation(v domain.Verdict) map[string]any {
	ev := v.Evidence
	return map[string]any{
		domain.FactorSharedDirector: v.Factors.SharedDirector,
		domain.FactorTenderPattern:  v.Factors.TenderPattern,
		domain.FactorCentrality:     v.Factors.Centrality,
		domain.FactorShell:          v.Factors.Shell,
		"risk_score":                v.RiskScore,
		"composite":                 v.Composite,
		"degree":                    int64(ev.Degree),
		"director_count":            int64(ev.DirectorCount),
		"shared_company_count":      int64(ev.SharedCompanyCount),
		"bid_count":                 int64(ev.BidCount),
		"won_count":                 int64(ev.WonCount),
		"won_value":                 ev.WonValue,
		"avg_value_ratio":           ev.AvgValueRatio,
		"shell_group_size":          int64(ev.ShellGroupSize),
		"shared_address_only":       int64(ev.SharedAddressOnly),
	}
}

// Evaluate runs every loaded rule against one verdict and returns the rules
// that fired, in load order.
func (e *Engine) Evaluate(ctx context.Context, v domain.Verdict) ([]domain.RuleHit, error) {
	e.mu.RLock()
	rules := append([]*CompiledRule(nil), e.compiled...)
	e.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return evaluate(rules, Activation(v))
}

// EvaluateAll evaluates the loaded rules for every verdict in parallel. The
// result is aligned with verdicts.
func (e *Engine) EvaluateAll(ctx context.Context, verdicts []domain.Verdict) ([][]domain.RuleHit, error) {
	e.mu.RLock()
	rules := append([]*CompiledRule(nil), e.compiled...)
	e.mu.RUnlock()

	results := make([][]domain.RuleHit, len(verdicts))
	if len(rules) == 0 {
		return results, nil
	}

	// Parallel evaluation using worker pool pattern
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i := range verdicts {
		if err := ctx.Err(); err != nil {
			errOnce.Do(func() { firstErr = err })
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			hits, err := evaluate(rules, Activation(verdicts[idx]))
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			results[idx] = hits
		}(i)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func evaluate(rules []*CompiledRule, activation map[string]any) ([]domain.RuleHit, error) {
	var hits []domain.RuleHit
	for _, r := range rules {
		out, _, err := r.Program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("rule %s: evaluation error: %w", r.Config.ID, err)
		}

		value := toScore(out)
		severity, reason, ok := matchBand(value, r.Config.Bands)
		if !ok {
			continue
		}
		hits = append(hits, domain.RuleHit{
			RuleID:   r.Config.ID,
			Name:     r.Config.Name,
			Factor:   r.Config.Factor,
			Value:    value,
			Severity: severity,
			Reason:   reason,
		})
	}
	return hits, nil
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the first band containing value.
// Lower is inclusive, upper exclusive; a nil bound is unbounded.
func matchBand(value float64, bands []domain.RuleBand) (domain.Severity, string, bool) {
	for _, band := range bands {
		if band.LowerLimit != nil && value < *band.LowerLimit {
			continue
		}
		if band.UpperLimit != nil && value >= *band.UpperLimit {
			continue
		}
		return band.Severity, band.Reason, true
	}
	return "", "", false
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Rules returns the loaded rule configurations in load order.
func (e *Engine) Rules() []domain.IndicatorRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.IndicatorRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		out = append(out, *c.Config)
	}
	return out
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = nil
	return nil
}

func (e *Engine) compileRule(cfg *domain.IndicatorRule) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
