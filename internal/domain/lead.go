package domain

import "time"

// Temperature classifies a lead's composite score.
type Temperature string

const (
	TemperatureHot  Temperature = "HOT"
	TemperatureWarm Temperature = "WARM"
	TemperatureCold Temperature = "COLD"
)

// LeadContext carries sales-side context that is not part of the
// customer snapshot itself.
type LeadContext struct {
	LastContactDate time.Time `json:"lastContactDate"`
	Source          string    `json:"source,omitempty"`
	OwnerID         string    `json:"ownerId,omitempty"`
}

// ScoredLead is the output of the lead scorer.
type ScoredLead struct {
	CustomerID  string      `json:"customerId"`
	TenantID    string      `json:"tenantId"`
	Score       float64     `json:"score"` // 0-100
	Temperature Temperature `json:"temperature"`

	// Per-factor sub-scores, each capped to its configured share
	BalanceScore    float64 `json:"balanceScore"`
	EngagementScore float64 `json:"engagementScore"`
	RecencyScore    float64 `json:"recencyScore"`

	LastContactDate time.Time       `json:"lastContactDate"`
	NextAction      *NextBestAction `json:"nextAction,omitempty"`
}
