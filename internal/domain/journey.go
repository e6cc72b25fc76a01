package domain

import "time"

// JourneyEventType discriminates lifecycle events on the timeline.
type JourneyEventType string

const (
	JourneyAccountCreated   JourneyEventType = "account_created"
	JourneyFirstTransaction JourneyEventType = "first_transaction"
	JourneyCampaignConvert  JourneyEventType = "campaign_conversion"
	JourneyConsentUpdated   JourneyEventType = "consent_updated"
	JourneyKYCReview        JourneyEventType = "kyc_review"
	JourneyLastActivity     JourneyEventType = "last_activity"
	JourneyCurrentStatus    JourneyEventType = "current_status"
)

// JourneyEvent is one entry on a customer's lifecycle timeline.
type JourneyEvent struct {
	Type        JourneyEventType `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}
