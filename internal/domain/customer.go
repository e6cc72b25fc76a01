// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"
)

// Customer is the raw profile snapshot the engine scores.
// The engine treats it as read-only; derived records are freshly
// allocated on every call and never written back.
type Customer struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Identity
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Address     string `json:"address,omitempty"`

	// Financial state
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency,omitempty"`

	// Products currently held (accounts, cards, loans, ...)
	Products []string `json:"products,omitempty"`

	// RFM segment label
	Segment Segment `json:"segment"`

	// History
	Transactions        []Transaction         `json:"transactions,omitempty"`
	CampaignHistory     []CampaignInteraction `json:"campaignHistory,omitempty"`
	ServiceInteractions []ServiceInteraction  `json:"serviceInteractions,omitempty"`

	// Gamification state
	Engagement Engagement `json:"engagement"`

	// Compliance records (sourced externally, read-only here)
	Consent Consent   `json:"consent"`
	KYC     KYCRecord `json:"kyc"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Segment is the RFM segment label of a customer.
type Segment string

const (
	SegmentChampions   Segment = "Champions"
	SegmentLoyal       Segment = "Loyal"
	SegmentPotential   Segment = "Potential"
	SegmentAtRisk      Segment = "At-Risk"
	SegmentHibernating Segment = "Hibernating"
)

// Transaction is an immutable historical fact about a customer.
type Transaction struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`

	// Optional recurring-bill metadata
	Recurring bool   `json:"recurring,omitempty"`
	Provider  string `json:"provider,omitempty"`

	// Optional transfer metadata
	CounterpartyID string `json:"counterpartyId,omitempty"`
}

// CampaignInteraction records one touchpoint with a marketing campaign.
type CampaignInteraction struct {
	CampaignID    string          `json:"campaignId"`
	CampaignTitle string          `json:"campaignTitle,omitempty"`
	Type          InteractionType `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`

	// Set for conversions only
	ConversionAmount float64 `json:"conversionAmount,omitempty"`
}

// InteractionType discriminates campaign touchpoints.
type InteractionType string

const (
	InteractionView    InteractionType = "view"
	InteractionClick   InteractionType = "click"
	InteractionConvert InteractionType = "convert"
	InteractionIgnore  InteractionType = "ignore"
)

// ServiceInteraction is one support ticket / service contact.
type ServiceInteraction struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject,omitempty"`
	Resolved        bool      `json:"resolved"`
	ResponseHours   float64   `json:"responseHours,omitempty"`
	ResolutionHours float64   `json:"resolutionHours,omitempty"`
	RepeatComplaint bool      `json:"repeatComplaint,omitempty"`
	Satisfaction    float64   `json:"satisfaction,omitempty"` // CSAT 0-100, 0 = not surveyed
	OpenedAt        time.Time `json:"openedAt"`
}

// Engagement holds the gamification state used by the EngagementScorer.
type Engagement struct {
	Level         int     `json:"level"`
	ExperiencePct float64 `json:"experiencePct"` // progress within level, 0-100
	Badges        []Badge `json:"badges,omitempty"`
}

// Badge is one achievement slot; Earned marks completion.
type Badge struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Earned bool   `json:"earned"`
}

// Consent is the customer's marketing consent record.
// OptIn false means no marketing channel may ever be used.
type Consent struct {
	OptIn     bool      `json:"optIn"`
	Channels  []Channel `json:"channels,omitempty"` // approved channels when opted in
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// KYCRecord is the customer's identity verification state.
type KYCRecord struct {
	Level     string    `json:"level"` // "basic", "standard", "enhanced"
	RiskTier  string    `json:"riskTier,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	AMLFlags  []string  `json:"amlFlags,omitempty"`
}

// Channel is a contact channel an action can execute on.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPhone    Channel = "phone"
	ChannelBranch   Channel = "branch"
	ChannelInApp    Channel = "in_app"
)

// MarketingChannels are the channels gated behind marketing consent.
var MarketingChannels = map[Channel]bool{
	ChannelEmail:    true,
	ChannelSMS:      true,
	ChannelPush:     true,
	ChannelWhatsApp: true,
}

// IsMarketing reports whether a channel requires marketing consent.
func (c Channel) IsMarketing() bool {
	return MarketingChannels[c]
}

// CustomerRequest is the API request payload for customer ingestion.
type CustomerRequest struct {
	ID                  string                `json:"id,omitempty"`
	Name                string                `json:"name"`
	Email               string                `json:"email,omitempty"`
	Phone               string                `json:"phone,omitempty"`
	DateOfBirth         string                `json:"dateOfBirth,omitempty"`
	Address             string                `json:"address,omitempty"`
	Balance             float64               `json:"balance"`
	Currency            string                `json:"currency,omitempty"`
	Products            []string              `json:"products,omitempty"`
	Segment             Segment               `json:"segment"`
	Transactions        []Transaction         `json:"transactions,omitempty"`
	CampaignHistory     []CampaignInteraction `json:"campaignHistory,omitempty"`
	ServiceInteractions []ServiceInteraction  `json:"serviceInteractions,omitempty"`
	Engagement          Engagement            `json:"engagement"`
	Consent             Consent               `json:"consent"`
	KYC                 KYCRecord             `json:"kyc"`
}

// ToCustomer converts a request to a Customer domain object.
func (r *CustomerRequest) ToCustomer(tenantID string) *Customer {
	now := time.Now().UTC()
	return &Customer{
		ID:                  r.ID,
		TenantID:            tenantID,
		Name:                r.Name,
		Email:               r.Email,
		Phone:               r.Phone,
		DateOfBirth:         r.DateOfBirth,
		Address:             r.Address,
		Balance:             r.Balance,
		Currency:            r.Currency,
		Products:            r.Products,
		Segment:             r.Segment,
		Transactions:        r.Transactions,
		CampaignHistory:     r.CampaignHistory,
		ServiceInteractions: r.ServiceInteractions,
		Engagement:          r.Engagement,
		Consent:             r.Consent,
		KYC:                 r.KYC,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
