package behavior

import (
	"github.com/opensource-crm/kestrel/internal/domain"
)

// ProfileBuilder composes analyzer and scorer output into the derived
// Customer 360 record. Stateless; every call allocates fresh output.
type ProfileBuilder struct {
	analyzer *Analyzer
	scorer   *EngagementScorer
}

// NewProfileBuilder creates a profile builder with the given scoring
// configuration.
func NewProfileBuilder(cfg domain.ScoringConfig) *ProfileBuilder {
	return &ProfileBuilder{
		analyzer: NewAnalyzer(),
		scorer:   NewEngagementScorer(cfg),
	}
}

// Build derives the CustomerProfile for a customer snapshot.
func (b *ProfileBuilder) Build(c *domain.Customer) *domain.CustomerProfile {
	behavior := b.analyzer.Analyze(c.Transactions)
	engagement := b.scorer.Metrics(c.Engagement)
	response := campaignResponse(c.CampaignHistory)

	return &domain.CustomerProfile{
		CustomerID:        c.ID,
		TenantID:          c.TenantID,
		Segment:           c.Segment,
		Behavior:          behavior,
		Engagement:        engagement,
		CampaignResponse:  response,
		RecommendedAction: recommendedAction(c.Segment, engagement.ConsistencyScore, response.ResponseRate),
	}
}

// campaignResponse rolls up the campaign interaction history.
func campaignResponse(history []domain.CampaignInteraction) domain.CampaignResponse {
	resp := domain.CampaignResponse{
		TotalInteractions: len(history),
		LastInteraction:   NotAvailable,
	}
	if len(history) == 0 {
		return resp
	}

	responded := 0
	latest := history[0].Timestamp
	for _, i := range history {
		switch i.Type {
		case domain.InteractionClick:
			responded++
		case domain.InteractionConvert:
			responded++
			resp.Conversions++
		}
		if i.Timestamp.After(latest) {
			latest = i.Timestamp
		}
	}

	resp.ResponseRate = float64(responded) / float64(len(history)) * 100
	resp.LastInteraction = latest.UTC().Format("2006-01-02")
	return resp
}

// recommendedAction produces the free-text suggestion shown alongside
// the profile. Coarse by design; the NBA engine owns real ranking.
func recommendedAction(segment domain.Segment, engagementScore, responseRate float64) string {
	switch {
	case segment == domain.SegmentAtRisk || segment == domain.SegmentHibernating:
		return "Prioritize a retention outreach before the next billing cycle"
	case engagementScore < 30:
		return "Invite to the rewards program to rebuild engagement"
	case responseRate >= 50:
		return "Strong campaign responder: schedule a cross-sell conversation"
	case segment == domain.SegmentChampions:
		return "Offer a premium product review with a relationship manager"
	default:
		return "Maintain regular contact cadence"
	}
}
