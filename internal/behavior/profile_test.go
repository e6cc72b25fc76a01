package behavior

import (
	"testing"

	"github.com/opensource-crm/kestrel/internal/domain"
)

func TestBuildComposesProfile(t *testing.T) {
	b := NewProfileBuilder(domain.DefaultScoringConfig())

	c := &domain.Customer{
		ID:       "cust-1",
		TenantID: "tenant-1",
		Segment:  domain.SegmentLoyal,
		Transactions: []domain.Transaction{
			{ID: "tx-1", Amount: 150, Category: "groceries", Timestamp: testNow.AddDate(0, -1, 0)},
		},
		CampaignHistory: []domain.CampaignInteraction{
			{CampaignID: "cmp-1", Type: domain.InteractionClick, Timestamp: testNow.AddDate(0, 0, -10)},
			{CampaignID: "cmp-2", Type: domain.InteractionConvert, Timestamp: testNow.AddDate(0, 0, -4)},
			{CampaignID: "cmp-3", Type: domain.InteractionIgnore, Timestamp: testNow.AddDate(0, 0, -2)},
			{CampaignID: "cmp-4", Type: domain.InteractionView, Timestamp: testNow.AddDate(0, 0, -1)},
		},
		Engagement: domain.Engagement{Level: 6, ExperiencePct: 40},
	}

	p := b.Build(c)

	if p.CustomerID != "cust-1" || p.TenantID != "tenant-1" {
		t.Errorf("identity = %s/%s, want cust-1/tenant-1", p.CustomerID, p.TenantID)
	}
	if p.Behavior.DominantCategory != "groceries" {
		t.Errorf("DominantCategory = %q, want groceries", p.Behavior.DominantCategory)
	}
	if p.CampaignResponse.TotalInteractions != 4 {
		t.Errorf("TotalInteractions = %d, want 4", p.CampaignResponse.TotalInteractions)
	}
	// One click plus one conversion out of four touchpoints.
	if p.CampaignResponse.ResponseRate != 50 {
		t.Errorf("ResponseRate = %v, want 50", p.CampaignResponse.ResponseRate)
	}
	if p.CampaignResponse.Conversions != 1 {
		t.Errorf("Conversions = %d, want 1", p.CampaignResponse.Conversions)
	}
	if p.RecommendedAction == "" {
		t.Error("RecommendedAction is empty")
	}
}

func TestRecommendedActionPrioritizesRisk(t *testing.T) {
	b := NewProfileBuilder(domain.DefaultScoringConfig())

	atRisk := &domain.Customer{
		ID:      "cust-risk",
		Segment: domain.SegmentAtRisk,
		// Strong engagement must not mask segment risk.
		Engagement: domain.Engagement{Level: 9, ExperiencePct: 90},
	}

	p := b.Build(atRisk)
	if p.RecommendedAction != "Prioritize a retention outreach before the next billing cycle" {
		t.Errorf("RecommendedAction = %q, want retention outreach", p.RecommendedAction)
	}
}

func TestCampaignResponseEmptyHistory(t *testing.T) {
	resp := campaignResponse(nil)

	if resp.TotalInteractions != 0 || resp.ResponseRate != 0 || resp.Conversions != 0 {
		t.Errorf("empty history produced %+v, want zeros", resp)
	}
	if resp.LastInteraction != NotAvailable {
		t.Errorf("LastInteraction = %q, want %q", resp.LastInteraction, NotAvailable)
	}
}
