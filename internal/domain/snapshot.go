package domain

import "time"

// ScoreSnapshot is the persisted output of one scoring pass. Unlike the
// derived records themselves it carries identity and timing metadata so
// dashboards can fetch the latest scoring without recomputing.
type ScoreSnapshot struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	CustomerID string    `json:"customerId"`
	Timestamp  time.Time `json:"timestamp"`

	LeadScore        float64     `json:"leadScore"`
	Temperature      Temperature `json:"temperature"`
	ChurnProbability float64     `json:"churnProbability"`
	ChurnTier        ChurnTier   `json:"churnTier"`

	Actions []NextBestAction `json:"actions"`

	Metadata SnapshotMetadata `json:"metadata"`
}

// SnapshotMetadata contains processing information for a scoring pass.
type SnapshotMetadata struct {
	TraceID        string `json:"traceId"`
	BuildMs        int64  `json:"buildMs"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	RulesFired     int    `json:"rulesFired"`
	EngineVersion  string `json:"engineVersion"`
}
