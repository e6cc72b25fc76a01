package crm

import (
	"math"

	"github.com/opensource-crm/kestrel/internal/domain"
)

// retentionMetrics derives churn risk from segment base plus an
// inactivity penalty. Probability is monotone in inactivity: more days
// of silence can never lower the churn probability.
func (a *Aggregator) retentionMetrics(c *domain.Customer, days int) domain.RetentionMetrics {
	base, ok := a.cfg.SegmentChurnBase[c.Segment]
	if !ok {
		base = 20
	}

	penalty := math.Min(a.cfg.ChurnInactivityCeiling, float64(days)*a.cfg.ChurnInactivityWeight)
	probability := clamp(base+penalty, 0, 100)
	tier := a.churnTier(probability)

	return domain.RetentionMetrics{
		ChurnTier:             tier,
		ChurnProbability:      probability,
		DaysSinceLastActivity: days,
		ReactivationEligible:  a.reactivationEligible(c, tier, days),
	}
}

// churnTier buckets a churn probability. Cutoffs are strictly ordered
// in config, so a higher probability never maps to a lower tier.
func (a *Aggregator) churnTier(probability float64) domain.ChurnTier {
	switch {
	case probability >= a.cfg.ChurnCriticalCutoff:
		return domain.ChurnCritical
	case probability >= a.cfg.ChurnHighCutoff:
		return domain.ChurnHigh
	case probability >= a.cfg.ChurnMediumCutoff:
		return domain.ChurnMedium
	default:
		return domain.ChurnLow
	}
}

// reactivationEligible marks at-risk customers worth a win-back attempt.
// Requires marketing consent and inactivity still inside the
// reactivation window; beyond it the customer counts as lost.
func (a *Aggregator) reactivationEligible(c *domain.Customer, tier domain.ChurnTier, days int) bool {
	if tier != domain.ChurnHigh && tier != domain.ChurnCritical {
		return false
	}
	if !c.Consent.OptIn {
		return false
	}
	return days <= a.cfg.ReactivationMaxDays
}
