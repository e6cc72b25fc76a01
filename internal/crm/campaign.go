package crm

import (
	"github.com/opensource-crm/kestrel/internal/domain"
)

// campaignMetrics derives marketing engagement metrics from campaign
// history. OptInRate comes from the live consent record alone; it is
// never inferred from interaction behavior.
func (a *Aggregator) campaignMetrics(c *domain.Customer) domain.CampaignEngagementMetrics {
	var m domain.CampaignEngagementMetrics
	if c.Consent.OptIn {
		m.OptInRate = 100
	}

	if len(c.CampaignHistory) == 0 {
		return m
	}

	opened := 0
	clicked := 0
	converted := 0
	campaigns := make(map[string]bool)
	for _, ci := range c.CampaignHistory {
		campaigns[ci.CampaignID] = true
		switch ci.Type {
		case domain.InteractionView:
			opened++
		case domain.InteractionClick:
			opened++
			clicked++
		case domain.InteractionConvert:
			opened++
			clicked++
			converted++
		}
	}

	total := float64(len(c.CampaignHistory))
	m.OpenRate = clamp(float64(opened)/total*100, 0, 100)
	m.ClickRate = clamp(float64(clicked)/total*100, 0, 100)
	if len(campaigns) > 0 {
		m.ConversionsPerJourney = float64(converted) / float64(len(campaigns))
	}
	return m
}
