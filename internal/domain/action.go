package domain

import "time"

// ActionCategory classifies a recommended action.
type ActionCategory string

const (
	CategoryUpsell     ActionCategory = "UPSELL"
	CategoryCrossSell  ActionCategory = "CROSS_SELL"
	CategoryRetention  ActionCategory = "RETENTION"
	CategoryActivation ActionCategory = "ACTIVATION"
	CategoryService    ActionCategory = "SERVICE"
)

// ActionPriority orders recommendations for display and ranking.
type ActionPriority string

const (
	PriorityHigh   ActionPriority = "HIGH"
	PriorityMedium ActionPriority = "MEDIUM"
	PriorityLow    ActionPriority = "LOW"
)

// PriorityRank maps a priority to its sort rank (higher wins).
func PriorityRank(p ActionPriority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ReasoningFactor is one explainable signal behind a recommendation.
// The weights of all factors attached to one action sum to at most 100.
type ReasoningFactor struct {
	Label  string  `json:"label"`
	Icon   string  `json:"icon,omitempty"`
	Impact int     `json:"impact"` // +1 positive, -1 negative signal
	Weight float64 `json:"weight"` // 0-100 share of the explanation
}

// NextBestAction is one ranked, explainable, consent-gated recommendation.
type NextBestAction struct {
	ID         string         `json:"id"`
	RuleID     string         `json:"ruleId"`
	CustomerID string         `json:"customerId"`
	Title      string         `json:"title"`
	Category   ActionCategory `json:"category"`
	Priority   ActionPriority `json:"priority"`
	Confidence float64        `json:"confidence"` // 0-100

	ExpectedRevenue float64 `json:"expectedRevenue"` // annualized estimate

	ShortReasoning   string            `json:"shortReasoning"`
	LongReasoning    string            `json:"longReasoning,omitempty"`
	ReasoningFactors []ReasoningFactor `json:"reasoningFactors"`

	// Channels the action may execute on, already consent-filtered
	Channels []Channel `json:"channels"`

	HistoricalConversionRate float64 `json:"historicalConversionRate,omitempty"`
}

// ActionRuleConfig defines one rule of the next-best-action rule set.
// The predicate is a CEL expression over customer and CRM profile
// signals; firing produces a candidate action from the template fields.
type ActionRuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// CEL predicate; bool fires at full confidence, a double in (0,1]
	// fires and scales the base confidence
	Expression string `json:"expression"`

	// Evaluation order within the rule set (ascending)
	Order int `json:"order"`

	// Action template
	Title           string            `json:"title"`
	Category        ActionCategory    `json:"category"`
	Priority        ActionPriority    `json:"priority"`
	BaseConfidence  float64           `json:"baseConfidence"` // 0-100
	ExpectedRevenue float64           `json:"expectedRevenue"`
	ShortReasoning  string            `json:"shortReasoning"`
	LongReasoning   string            `json:"longReasoning,omitempty"`
	Channels        []Channel         `json:"channels"`
	Factors         []ReasoningFactor `json:"factors"`

	HistoricalConversionRate float64 `json:"historicalConversionRate,omitempty"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
