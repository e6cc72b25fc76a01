package domain

// BehaviorAnalytics summarizes a customer's transaction history.
// All fields degrade to zero / "N/A" when the history is empty.
type BehaviorAnalytics struct {
	AverageTransactionAmount float64 `json:"averageTransactionAmount"`
	TotalTransactionVolume   float64 `json:"totalTransactionVolume"`
	DominantCategory         string  `json:"dominantCategory"`
	TransactionFrequency     float64 `json:"transactionFrequency"` // per month
	LastTransactionDate      string  `json:"lastTransactionDate"`  // ISO date or "N/A"
}

// EngagementMetrics is the scored gamification state.
type EngagementMetrics struct {
	ConsistencyScore float64 `json:"consistencyScore"` // 0-100
	Level            int     `json:"level"`
	BadgesEarned     int     `json:"badgesEarned"`
	BadgesTotal      int     `json:"badgesTotal"`
}

// CampaignResponse rolls up a customer's campaign interaction history.
type CampaignResponse struct {
	TotalInteractions int     `json:"totalInteractions"`
	ResponseRate      float64 `json:"responseRate"` // 0-100
	Conversions       int     `json:"conversions"`
	LastInteraction   string  `json:"lastInteraction"` // ISO date or "N/A"
}

// CustomerProfile is the derived "Customer 360" record.
// Recomputed on every call; never persisted by the engine.
type CustomerProfile struct {
	CustomerID        string            `json:"customerId"`
	TenantID          string            `json:"tenantId"`
	Segment           Segment           `json:"segment"`
	Behavior          BehaviorAnalytics `json:"behavior"`
	Engagement        EngagementMetrics `json:"engagement"`
	CampaignResponse  CampaignResponse  `json:"campaignResponse"`
	RecommendedAction string            `json:"recommendedAction"`
}
