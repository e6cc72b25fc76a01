package domain

// ServiceMetrics measures service quality for one customer.
// Invariant: ResolvedTickets + PendingTickets == TotalTickets.
type ServiceMetrics struct {
	TotalTickets        int     `json:"totalTickets"`
	ResolvedTickets     int     `json:"resolvedTickets"`
	PendingTickets      int     `json:"pendingTickets"`
	AvgResponseHours    float64 `json:"avgResponseHours"`
	AvgResolutionHours  float64 `json:"avgResolutionHours"`
	SLAHitRate          float64 `json:"slaHitRate"`          // 0-100
	RepeatComplaintRate float64 `json:"repeatComplaintRate"` // 0-100
	SatisfactionScore   float64 `json:"satisfactionScore"`   // CSAT 0-100
}

// CampaignEngagementMetrics measures marketing engagement.
// OptInRate is the metric surface of the consent gate: 100 when the
// live consent record is opted in, 0 otherwise, never computed from
// anything else.
type CampaignEngagementMetrics struct {
	OptInRate             float64 `json:"optInRate"`  // 0 or 100
	OpenRate              float64 `json:"openRate"`   // 0-100
	ClickRate             float64 `json:"clickRate"`  // 0-100
	ConversionsPerJourney float64 `json:"conversionsPerJourney"`
}

// GrowthMetrics measures expansion potential.
type GrowthMetrics struct {
	CrossSellConversion  float64 `json:"crossSellConversion"` // 0-100
	UpsellConversion     float64 `json:"upsellConversion"`    // 0-100
	ProductsPerCustomer  int     `json:"productsPerCustomer"`
	GrowthPotentialScore float64 `json:"growthPotentialScore"` // 0-100
}

// ChurnTier buckets churn probability.
type ChurnTier string

const (
	ChurnLow      ChurnTier = "Low"
	ChurnMedium   ChurnTier = "Medium"
	ChurnHigh     ChurnTier = "High"
	ChurnCritical ChurnTier = "Critical"
)

// RetentionMetrics measures disengagement risk.
type RetentionMetrics struct {
	ChurnTier             ChurnTier `json:"churnTier"`
	ChurnProbability      float64   `json:"churnProbability"` // 0-100
	DaysSinceLastActivity int       `json:"daysSinceLastActivity"`
	ReactivationEligible  bool      `json:"reactivationEligible"`
}

// KYCStatus buckets profile completeness into a verification state.
type KYCStatus string

const (
	KYCComplete KYCStatus = "Complete"
	KYCPartial  KYCStatus = "Partial"
	KYCPending  KYCStatus = "Pending"
	KYCExpired  KYCStatus = "Expired"
)

// TrustComplianceMetrics measures data quality and compliance posture.
type TrustComplianceMetrics struct {
	ConsentCoverage     float64   `json:"consentCoverage"`     // 0-100
	DataQualityScore    float64   `json:"dataQualityScore"`    // 0-100
	ProfileCompleteness float64   `json:"profileCompleteness"` // 0-100
	KYCStatus           KYCStatus `json:"kycStatus"`
	MissingFields       []string  `json:"missingFields,omitempty"`
}

// CRMMetricsProfile is the full per-customer CRM health record.
// Derived and ephemeral, like CustomerProfile.
type CRMMetricsProfile struct {
	CustomerID string                    `json:"customerId"`
	TenantID   string                    `json:"tenantId"`
	Service    ServiceMetrics            `json:"service"`
	Campaign   CampaignEngagementMetrics `json:"campaign"`
	Growth     GrowthMetrics             `json:"growth"`
	Retention  RetentionMetrics          `json:"retention"`
	Trust      TrustComplianceMetrics    `json:"trust"`
}

// AggregateMetrics rolls per-customer CRM profiles into population-level
// values. Every field is the rounded mean of the corresponding
// per-customer field except ChurnTierCounts, which is a tally.
type AggregateMetrics struct {
	CustomerCount          int               `json:"customerCount"`
	AvgSLAHitRate          float64           `json:"avgSlaHitRate"`
	AvgSatisfaction        float64           `json:"avgSatisfaction"`
	OptInRate              float64           `json:"optInRate"`
	AvgOpenRate            float64           `json:"avgOpenRate"`
	AvgClickRate           float64           `json:"avgClickRate"`
	AvgGrowthPotential     float64           `json:"avgGrowthPotential"`
	AvgChurnProbability    float64           `json:"avgChurnProbability"`
	AvgDataQuality         float64           `json:"avgDataQuality"`
	AvgProfileCompleteness float64           `json:"avgProfileCompleteness"`
	ChurnTierCounts        map[ChurnTier]int `json:"churnTierCounts"`
}
