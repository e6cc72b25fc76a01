// Package lead scores customers as sales leads and ranks them for
// outreach prioritization.
package lead

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-crm/kestrel/internal/behavior"
	"github.com/opensource-crm/kestrel/internal/domain"
)

// Scorer computes the composite lead score from balance, engagement
// and contact recency. Each factor is capped at its configured share,
// so the composite stays in [0, 100] and classification thresholds are
// stable under config tuning.
type Scorer struct {
	cfg        domain.ScoringConfig
	engagement *behavior.EngagementScorer

	// Clock supplies the reference time for recency scoring.
	// Overridable in tests; defaults to time.Now.
	Clock func() time.Time
}

// NewScorer creates a lead scorer with the given configuration.
func NewScorer(cfg domain.ScoringConfig) *Scorer {
	return &Scorer{
		cfg:        cfg,
		engagement: behavior.NewEngagementScorer(cfg),
		Clock:      time.Now,
	}
}

// Score computes the lead score for one customer with sales context.
func (s *Scorer) Score(c *domain.Customer, lctx domain.LeadContext) *domain.ScoredLead {
	balance := s.balanceScore(c.Balance)
	engagement := s.engagementScore(c.Engagement)
	recency := s.recencyScore(lctx.LastContactDate)

	total := clamp(balance+engagement+recency, 0, 100)

	return &domain.ScoredLead{
		CustomerID:      c.ID,
		TenantID:        c.TenantID,
		Score:           total,
		Temperature:     s.Classify(total),
		BalanceScore:    balance,
		EngagementScore: engagement,
		RecencyScore:    recency,
		LastContactDate: lctx.LastContactDate,
	}
}

// Classify maps a composite score to a temperature. Monotone by
// construction: a higher score can never map to a colder tier.
func (s *Scorer) Classify(score float64) domain.Temperature {
	switch {
	case score >= s.cfg.HotCutoff:
		return domain.TemperatureHot
	case score >= s.cfg.WarmCutoff:
		return domain.TemperatureWarm
	default:
		return domain.TemperatureCold
	}
}

// Rank sorts scored leads best-first: score descending, with ties
// broken toward the most recently contacted lead, then by customer ID
// so equal inputs always produce the same order.
func Rank(leads []*domain.ScoredLead) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Score != leads[j].Score {
			return leads[i].Score > leads[j].Score
		}
		if !leads[i].LastContactDate.Equal(leads[j].LastContactDate) {
			return leads[i].LastContactDate.After(leads[j].LastContactDate)
		}
		return leads[i].CustomerID < leads[j].CustomerID
	})
}

// balanceScore grants the full balance share at the configured ceiling
// and scales linearly below it. Negative balances score zero.
func (s *Scorer) balanceScore(balance float64) float64 {
	ceiling := s.cfg.LeadBalanceCeiling
	if ceiling <= 0 {
		ceiling = 50000
	}
	score := balance / ceiling * s.cfg.LeadBalanceShare
	return clamp(score, 0, s.cfg.LeadBalanceShare)
}

// engagementScore rescales the 0-100 consistency score into the
// engagement share of the composite.
func (s *Scorer) engagementScore(e domain.Engagement) float64 {
	consistency := s.engagement.Score(e)
	score := consistency / 100 * s.cfg.LeadEngagementShare
	return clamp(score, 0, s.cfg.LeadEngagementShare)
}

// recencyScore decays linearly from the full share inside the
// full-credit window to zero at the stale horizon. A lead never
// contacted scores zero.
func (s *Scorer) recencyScore(lastContact time.Time) float64 {
	if lastContact.IsZero() {
		return 0
	}

	days := s.Clock().Sub(lastContact).Hours() / 24
	if days < 0 {
		days = 0
	}

	full := float64(s.cfg.LeadRecencyFullDays)
	zero := float64(s.cfg.LeadRecencyZeroDays)
	switch {
	case days <= full:
		return s.cfg.LeadRecencyShare
	case days >= zero:
		return 0
	default:
		remaining := (zero - days) / (zero - full)
		return clamp(remaining*s.cfg.LeadRecencyShare, 0, s.cfg.LeadRecencyShare)
	}
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
