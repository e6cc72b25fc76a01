package nba

import "github.com/opensource-crm/kestrel/internal/domain"

// BuiltinRules returns the default action rule set. Tenants start from
// these and tune or replace them via the rules API; the worker seeds
// them into the repository when a tenant has no rules of its own.
func BuiltinRules() []*domain.ActionRuleConfig {
	return []*domain.ActionRuleConfig{
		{
			ID:              "high-balance-upsell",
			Name:            "High balance upsell",
			Description:     "Large idle balance with headroom for a premium product",
			Version:         "1.0.0",
			Expression:      `balance >= 25000.0 && churn_tier != "Critical" && products_held < 4`,
			Order:           10,
			Title:           "Offer premium savings account",
			Category:        domain.CategoryUpsell,
			Priority:        domain.PriorityHigh,
			BaseConfidence:  80,
			ExpectedRevenue: 1200,
			ShortReasoning:  "High balance with few products held",
			LongReasoning:   "The customer keeps a large balance while holding few products, which signals unused capacity for a premium offering.",
			Channels:        []domain.Channel{domain.ChannelEmail, domain.ChannelInApp, domain.ChannelPhone},
			Factors: []domain.ReasoningFactor{
				{Label: "Balance above threshold", Icon: "wallet", Impact: 1, Weight: 50},
				{Label: "Low product penetration", Icon: "layers", Impact: 1, Weight: 30},
				{Label: "Churn risk acceptable", Icon: "shield", Impact: 1, Weight: 20},
			},
			HistoricalConversionRate: 12.5,
			Enabled:                  true,
		},
		{
			ID:              "champion-cross-sell",
			Name:            "Champion cross-sell",
			Description:     "Best segment with growth headroom",
			Version:         "1.0.0",
			Expression:      `segment == "Champions" && growth_potential >= 50.0`,
			Order:           20,
			Title:           "Invite to investment product review",
			Category:        domain.CategoryCrossSell,
			Priority:        domain.PriorityHigh,
			BaseConfidence:  75,
			ExpectedRevenue: 900,
			ShortReasoning:  "Top-segment customer with growth potential",
			Channels:        []domain.Channel{domain.ChannelEmail, domain.ChannelPhone},
			Factors: []domain.ReasoningFactor{
				{Label: "Champions segment", Icon: "star", Impact: 1, Weight: 60},
				{Label: "Growth potential", Icon: "trending-up", Impact: 1, Weight: 40},
			},
			HistoricalConversionRate: 15.0,
			Enabled:                  true,
		},
		{
			ID:              "at-risk-retention",
			Name:            "At-risk retention outreach",
			Description:     "Rising churn risk in a salvageable account",
			Version:         "1.0.0",
			Expression:      `churn_tier == "High" && days_inactive < 120`,
			Order:           30,
			Title:           "Schedule retention call with offer",
			Category:        domain.CategoryRetention,
			Priority:        domain.PriorityHigh,
			BaseConfidence:  70,
			ExpectedRevenue: 600,
			ShortReasoning:  "High churn risk, still reachable",
			LongReasoning:   "Churn probability sits in the high tier but the customer was active recently enough that an offer can still land.",
			Channels:        []domain.Channel{domain.ChannelPhone, domain.ChannelEmail},
			Factors: []domain.ReasoningFactor{
				{Label: "High churn tier", Icon: "alert", Impact: -1, Weight: 55},
				{Label: "Recent activity", Icon: "clock", Impact: 1, Weight: 45},
			},
			HistoricalConversionRate: 22.0,
			Enabled:                  true,
		},
		{
			ID:              "hibernating-win-back",
			Name:            "Hibernating win-back",
			Description:     "Dormant account inside the reactivation window",
			Version:         "1.0.0",
			Expression:      `segment == "Hibernating" && days_inactive >= 60 && days_inactive <= 180`,
			Order:           40,
			Title:           "Send win-back incentive",
			Category:        domain.CategoryActivation,
			Priority:        domain.PriorityMedium,
			BaseConfidence:  55,
			ExpectedRevenue: 300,
			ShortReasoning:  "Dormant but not yet lost",
			Channels:        []domain.Channel{domain.ChannelEmail, domain.ChannelSMS},
			Factors: []domain.ReasoningFactor{
				{Label: "Hibernating segment", Icon: "moon", Impact: -1, Weight: 50},
				{Label: "Inside win-back window", Icon: "clock", Impact: 1, Weight: 50},
			},
			HistoricalConversionRate: 8.0,
			Enabled:                  true,
		},
		{
			ID:              "low-engagement-activation",
			Name:            "Low engagement activation",
			Description:     "Active account with weak product engagement",
			Version:         "1.0.0",
			Expression:      `engagement_score < 30.0 && days_inactive < 30`,
			Order:           50,
			Title:           "Promote rewards program enrollment",
			Category:        domain.CategoryActivation,
			Priority:        domain.PriorityMedium,
			BaseConfidence:  60,
			ExpectedRevenue: 150,
			ShortReasoning:  "Recently active but disengaged",
			Channels:        []domain.Channel{domain.ChannelPush, domain.ChannelInApp},
			Factors: []domain.ReasoningFactor{
				{Label: "Low engagement score", Icon: "battery-low", Impact: -1, Weight: 60},
				{Label: "Recent activity", Icon: "clock", Impact: 1, Weight: 40},
			},
			HistoricalConversionRate: 18.0,
			Enabled:                  true,
		},
		{
			ID:              "churn-critical-save",
			Name:            "Critical churn save",
			Description:     "Imminent churn, escalate to a human",
			Version:         "1.0.0",
			Expression:      `churn_tier == "Critical"`,
			Order:           60,
			Title:           "Escalate to relationship manager",
			Category:        domain.CategoryRetention,
			Priority:        domain.PriorityHigh,
			BaseConfidence:  85,
			ExpectedRevenue: 800,
			ShortReasoning:  "Critical churn tier requires human outreach",
			LongReasoning:   "At this churn tier automated campaigns underperform; a direct conversation with a relationship manager recovers more accounts.",
			Channels:        []domain.Channel{domain.ChannelPhone, domain.ChannelBranch},
			Factors: []domain.ReasoningFactor{
				{Label: "Critical churn tier", Icon: "alert", Impact: -1, Weight: 100},
			},
			HistoricalConversionRate: 30.0,
			Enabled:                  true,
		},
		{
			ID:              "service-follow-up",
			Name:            "Service quality follow-up",
			Description:     "Poor service experience needs repair before any selling",
			Version:         "1.0.0",
			Expression:      `satisfaction < 50.0 || sla_hit_rate < 60.0`,
			Order:           70,
			Title:           "Service recovery follow-up call",
			Category:        domain.CategoryService,
			Priority:        domain.PriorityMedium,
			BaseConfidence:  65,
			ExpectedRevenue: 0,
			ShortReasoning:  "Service experience below standard",
			Channels:        []domain.Channel{domain.ChannelPhone},
			Factors: []domain.ReasoningFactor{
				{Label: "Low satisfaction", Icon: "frown", Impact: -1, Weight: 60},
				{Label: "SLA misses", Icon: "timer-off", Impact: -1, Weight: 40},
			},
			HistoricalConversionRate: 0,
			Enabled:                  true,
		},
		{
			ID:              "kyc-renewal",
			Name:            "KYC renewal prompt",
			Description:     "Verification state needs refreshing",
			Version:         "1.0.0",
			Expression:      `kyc_status == "Expired" || kyc_status == "Pending"`,
			Order:           80,
			Title:           "Request identity document refresh",
			Category:        domain.CategoryService,
			Priority:        domain.PriorityLow,
			BaseConfidence:  90,
			ExpectedRevenue: 0,
			ShortReasoning:  "Verification incomplete or stale",
			Channels:        []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
			Factors: []domain.ReasoningFactor{
				{Label: "KYC not current", Icon: "id-card", Impact: -1, Weight: 100},
			},
			HistoricalConversionRate: 0,
			Enabled:                  true,
		},
		{
			ID:              "recurring-bill-cross-sell",
			Name:            "Recurring spender cross-sell",
			Description:     "Steady transaction volume supports a bill management product",
			Version:         "1.0.0",
			Expression:      `total_volume >= 5000.0 && avg_ticket < 500.0 && opt_in`,
			Order:           90,
			Title:           "Offer automated bill management",
			Category:        domain.CategoryCrossSell,
			Priority:        domain.PriorityLow,
			BaseConfidence:  50,
			ExpectedRevenue: 200,
			ShortReasoning:  "Frequent small payments suit bill automation",
			Channels:        []domain.Channel{domain.ChannelEmail, domain.ChannelInApp},
			Factors: []domain.ReasoningFactor{
				{Label: "Steady volume", Icon: "repeat", Impact: 1, Weight: 60},
				{Label: "Small average ticket", Icon: "coins", Impact: 1, Weight: 40},
			},
			HistoricalConversionRate: 10.0,
			Enabled:                  true,
		},
	}
}
