// Package nba provides the CEL-Go based next-best-action engine.
package nba

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-crm/kestrel/internal/domain"
)

// DefaultMaxActions caps the recommendation list when the caller does
// not specify a limit.
const DefaultMaxActions = 5

// Engine evaluates the tenant's action rule set against a scored
// customer and produces ranked, consent-gated recommendations.
//
// Rules are evaluated sequentially in configured order so equal inputs
// always produce identical output.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ActionRuleConfig
	Program cel.Program
}

// NewEngine creates a next-best-action engine.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("customer", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("balance", cel.DoubleType),
		cel.Variable("segment", cel.StringType),
		cel.Variable("opt_in", cel.BoolType),
		cel.Variable("engagement_score", cel.DoubleType),
		cel.Variable("churn_probability", cel.DoubleType),
		cel.Variable("churn_tier", cel.StringType),
		cel.Variable("days_inactive", cel.IntType),
		cel.Variable("products_held", cel.IntType),
		cel.Variable("growth_potential", cel.DoubleType),
		cel.Variable("kyc_status", cel.StringType),
		cel.Variable("avg_ticket", cel.DoubleType),
		cel.Variable("total_volume", cel.DoubleType),
		cel.Variable("conversion_rate", cel.DoubleType),
		cel.Variable("open_rate", cel.DoubleType),
		cel.Variable("sla_hit_rate", cel.DoubleType),
		cel.Variable("satisfaction", cel.DoubleType),
		cel.Variable("completeness", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded
// engine rules.
func (e *Engine) ValidateRule(cfg *domain.ActionRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.ActionRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.ActionRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.ActionRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.ActionRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ActionRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

// GenerateInput carries the scored signals one generation run reads.
type GenerateInput struct {
	Customer   *domain.Customer
	Behavior   *domain.CustomerProfile
	CRM        *domain.CRMMetricsProfile
	MaxActions int
}

// GenerateResult is the outcome of one generation run.
type GenerateResult struct {
	Actions        []*domain.NextBestAction
	RulesEvaluated int
	RulesFired     int
}

// Generate evaluates all loaded rules against the customer's signals
// and returns the ranked, consent-gated action list.
//
// A bool expression fires at the rule's base confidence; a positive
// numeric result fires, with fractional values scaling it down and
// anything above one clamped to full scale. Fired candidates are
// consent-filtered, deduplicated by category and title, ranked by
// priority then confidence then expected revenue, and truncated.
func (e *Engine) Generate(input *GenerateInput) (*GenerateResult, error) {
	if input == nil || input.Customer == nil {
		return nil, fmt.Errorf("customer is required")
	}

	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	// Fixed evaluation order regardless of load order.
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Config.Order != rules[j].Config.Order {
			return rules[i].Config.Order < rules[j].Config.Order
		}
		return rules[i].Config.ID < rules[j].Config.ID
	})

	activation := buildActivation(input)
	result := &GenerateResult{RulesEvaluated: len(rules)}

	var candidates []*domain.NextBestAction
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			// A broken rule must not block the rest of the set.
			continue
		}

		scale, fired := firingScale(out)
		if !fired {
			continue
		}
		result.RulesFired++

		action := e.buildAction(rule.Config, input.Customer, scale)
		action = applyConsentGate(action, input.Customer.Consent)
		if action == nil {
			continue
		}
		candidates = append(candidates, action)
	}

	candidates = dedupe(candidates)
	rank(candidates)

	maxActions := input.MaxActions
	if maxActions <= 0 {
		maxActions = DefaultMaxActions
	}
	if len(candidates) > maxActions {
		candidates = candidates[:maxActions]
	}

	result.Actions = candidates
	return result, nil
}

// buildActivation flattens the customer and its derived profiles into
// CEL variables. Missing profiles leave their signals at zero values.
func buildActivation(input *GenerateInput) map[string]any {
	c := input.Customer

	activation := map[string]any{
		"customer": map[string]any{
			"id":       c.ID,
			"name":     c.Name,
			"segment":  string(c.Segment),
			"balance":  c.Balance,
			"products": c.Products,
		},
		"balance":           c.Balance,
		"segment":           string(c.Segment),
		"opt_in":            c.Consent.OptIn,
		"engagement_score":  0.0,
		"churn_probability": 0.0,
		"churn_tier":        string(domain.ChurnLow),
		"days_inactive":     int64(0),
		"products_held":     int64(len(c.Products)),
		"growth_potential":  0.0,
		"kyc_status":        string(domain.KYCPending),
		"avg_ticket":        0.0,
		"total_volume":      0.0,
		"conversion_rate":   0.0,
		"open_rate":         0.0,
		"sla_hit_rate":      0.0,
		"satisfaction":      0.0,
		"completeness":      0.0,
	}

	if b := input.Behavior; b != nil {
		activation["engagement_score"] = b.Engagement.ConsistencyScore
		activation["avg_ticket"] = b.Behavior.AverageTransactionAmount
		activation["total_volume"] = b.Behavior.TotalTransactionVolume
		activation["conversion_rate"] = b.CampaignResponse.ResponseRate
	}

	if p := input.CRM; p != nil {
		activation["churn_probability"] = p.Retention.ChurnProbability
		activation["churn_tier"] = string(p.Retention.ChurnTier)
		activation["days_inactive"] = int64(p.Retention.DaysSinceLastActivity)
		activation["growth_potential"] = p.Growth.GrowthPotentialScore
		activation["kyc_status"] = string(p.Trust.KYCStatus)
		activation["open_rate"] = p.Campaign.OpenRate
		activation["sla_hit_rate"] = p.Service.SLAHitRate
		activation["satisfaction"] = p.Service.SatisfactionScore
		activation["completeness"] = p.Trust.ProfileCompleteness
	}

	return activation
}

// firingScale converts a CEL result to a confidence scale.
// Bool true fires at full scale; any positive numeric result fires,
// scaling by fractional values and clamping at one; everything else
// means the rule did not fire.
func firingScale(val ref.Val) (float64, bool) {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0, true
		}
		return 0, false
	case types.Double:
		if float64(v) > 0 {
			return math.Min(float64(v), 1), true
		}
		return 0, false
	case types.Int:
		if v > 0 {
			return 1.0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// buildAction instantiates a candidate action from a fired rule's
// template. The action ID is derived from rule and customer so the
// same firing always yields the same identity.
func (e *Engine) buildAction(cfg *domain.ActionRuleConfig, c *domain.Customer, scale float64) *domain.NextBestAction {
	confidence := cfg.BaseConfidence * scale
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}

	channels := make([]domain.Channel, len(cfg.Channels))
	copy(channels, cfg.Channels)

	return &domain.NextBestAction{
		ID:                       fmt.Sprintf("nba-%s-%s", cfg.ID, c.ID),
		RuleID:                   cfg.ID,
		CustomerID:               c.ID,
		Title:                    cfg.Title,
		Category:                 cfg.Category,
		Priority:                 cfg.Priority,
		Confidence:               confidence,
		ExpectedRevenue:          cfg.ExpectedRevenue,
		ShortReasoning:           cfg.ShortReasoning,
		LongReasoning:            cfg.LongReasoning,
		ReasoningFactors:         normalizeFactors(cfg.Factors),
		Channels:                 channels,
		HistoricalConversionRate: cfg.HistoricalConversionRate,
	}
}

// normalizeFactors copies the factors, clamping each weight into
// [0, 100] and scaling weights down proportionally when they sum
// above 100.
func normalizeFactors(factors []domain.ReasoningFactor) []domain.ReasoningFactor {
	if len(factors) == 0 {
		return nil
	}

	out := make([]domain.ReasoningFactor, len(factors))
	copy(out, factors)

	var sum float64
	for i := range out {
		out[i].Weight = math.Min(math.Max(out[i].Weight, 0), 100)
		sum += out[i].Weight
	}
	if sum <= 100 {
		return out
	}

	for i := range out {
		out[i].Weight = out[i].Weight / sum * 100
	}
	return out
}

// applyConsentGate enforces marketing consent on a candidate.
// Opted-out customers lose every marketing channel; a candidate with
// no channel left is dropped entirely. Never overridable by rule
// configuration.
func applyConsentGate(action *domain.NextBestAction, consent domain.Consent) *domain.NextBestAction {
	if consent.OptIn {
		return action
	}

	allowed := action.Channels[:0]
	for _, ch := range action.Channels {
		if !ch.IsMarketing() {
			allowed = append(allowed, ch)
		}
	}
	if len(allowed) == 0 {
		return nil
	}

	action.Channels = allowed
	return action
}

// dedupe drops duplicate candidates sharing category and title,
// keeping the strongest by priority then confidence. Input order is
// the rule evaluation order, so the survivor is deterministic.
func dedupe(actions []*domain.NextBestAction) []*domain.NextBestAction {
	seen := make(map[string]int)
	out := actions[:0]

	for _, a := range actions {
		key := string(a.Category) + "\x00" + a.Title
		idx, ok := seen[key]
		if !ok {
			seen[key] = len(out)
			out = append(out, a)
			continue
		}

		kept := out[idx]
		if domain.PriorityRank(a.Priority) > domain.PriorityRank(kept.Priority) ||
			(a.Priority == kept.Priority && a.Confidence > kept.Confidence) {
			out[idx] = a
		}
	}
	return out
}

// rank orders actions best-first: priority, then confidence, then
// expected revenue, with rule ID as the final deterministic tiebreak.
func rank(actions []*domain.NextBestAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		pi, pj := domain.PriorityRank(actions[i].Priority), domain.PriorityRank(actions[j].Priority)
		if pi != pj {
			return pi > pj
		}
		if actions[i].Confidence != actions[j].Confidence {
			return actions[i].Confidence > actions[j].Confidence
		}
		if actions[i].ExpectedRevenue != actions[j].ExpectedRevenue {
			return actions[i].ExpectedRevenue > actions[j].ExpectedRevenue
		}
		return actions[i].RuleID < actions[j].RuleID
	})
}

func (e *Engine) compileRule(cfg *domain.ActionRuleConfig) (*CompiledRule, error) {
	for _, f := range cfg.Factors {
		if f.Weight < 0 || f.Weight > 100 {
			return nil, fmt.Errorf("rule %s: factor %q weight %v is outside [0, 100]", cfg.ID, f.Label, f.Weight)
		}
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
