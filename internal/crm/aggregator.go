// Package crm builds the per-customer CRM health profile and rolls
// per-customer metrics into population-level aggregates.
package crm

import (
	"math"
	"time"

	"github.com/opensource-crm/kestrel/internal/domain"
)

// Aggregator composes the five CRM metric groups for a customer and
// aggregates them over a population. Pure given its estimator and
// clock; holds no per-call state.
type Aggregator struct {
	cfg domain.ScoringConfig
	est domain.Estimator

	// Clock supplies the reference time for recency-derived metrics.
	// Overridable in tests; defaults to time.Now.
	Clock func() time.Time
}

// NewAggregator creates an aggregator with the given configuration and
// estimator.
func NewAggregator(cfg domain.ScoringConfig, est domain.Estimator) *Aggregator {
	return &Aggregator{
		cfg:   cfg,
		est:   est,
		Clock: time.Now,
	}
}

// BuildProfile derives the full CRM metrics profile for one customer.
func (a *Aggregator) BuildProfile(c *domain.Customer) *domain.CRMMetricsProfile {
	days := a.daysSinceLastActivity(c)

	return &domain.CRMMetricsProfile{
		CustomerID: c.ID,
		TenantID:   c.TenantID,
		Service:    a.serviceMetrics(c),
		Campaign:   a.campaignMetrics(c),
		Growth:     a.growthMetrics(c),
		Retention:  a.retentionMetrics(c, days),
		Trust:      a.trustMetrics(c, days),
	}
}

// Aggregate rolls per-customer profiles into population metrics.
// Every average is computed from the same BuildProfile output the
// per-customer surfaces use, so the rollup cannot drift from them.
func (a *Aggregator) Aggregate(customers []*domain.Customer) *domain.AggregateMetrics {
	agg := &domain.AggregateMetrics{
		CustomerCount:   len(customers),
		ChurnTierCounts: make(map[domain.ChurnTier]int),
	}
	if len(customers) == 0 {
		return agg
	}

	var sla, sat, optIn, open, click, growth, churn, quality, completeness float64
	for _, c := range customers {
		p := a.BuildProfile(c)
		sla += p.Service.SLAHitRate
		sat += p.Service.SatisfactionScore
		optIn += p.Campaign.OptInRate
		open += p.Campaign.OpenRate
		click += p.Campaign.ClickRate
		growth += p.Growth.GrowthPotentialScore
		churn += p.Retention.ChurnProbability
		quality += p.Trust.DataQualityScore
		completeness += p.Trust.ProfileCompleteness
		agg.ChurnTierCounts[p.Retention.ChurnTier]++
	}

	n := float64(len(customers))
	agg.AvgSLAHitRate = roundMean(sla, n)
	agg.AvgSatisfaction = roundMean(sat, n)
	agg.OptInRate = roundMean(optIn, n)
	agg.AvgOpenRate = roundMean(open, n)
	agg.AvgClickRate = roundMean(click, n)
	agg.AvgGrowthPotential = roundMean(growth, n)
	agg.AvgChurnProbability = roundMean(churn, n)
	agg.AvgDataQuality = roundMean(quality, n)
	agg.AvgProfileCompleteness = roundMean(completeness, n)

	return agg
}

// daysSinceLastActivity measures inactivity from the most recent
// transaction, campaign interaction, or service ticket. Customers with
// no recorded activity fall back to account age, and a missing
// creation date is treated pessimistically as a year of silence.
func (a *Aggregator) daysSinceLastActivity(c *domain.Customer) int {
	var latest time.Time
	for _, tx := range c.Transactions {
		if tx.Timestamp.After(latest) {
			latest = tx.Timestamp
		}
	}
	for _, ci := range c.CampaignHistory {
		if ci.Timestamp.After(latest) {
			latest = ci.Timestamp
		}
	}
	for _, si := range c.ServiceInteractions {
		if si.OpenedAt.After(latest) {
			latest = si.OpenedAt
		}
	}
	if latest.IsZero() {
		latest = c.CreatedAt
	}
	if latest.IsZero() {
		return 365
	}

	days := int(a.Clock().Sub(latest).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// roundMean returns sum/n rounded to two decimals.
func roundMean(sum, n float64) float64 {
	return math.Round(sum/n*100) / 100
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
