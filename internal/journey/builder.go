// Package journey reconstructs a customer's lifecycle timeline from
// the facts recorded on the profile.
package journey

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-crm/kestrel/internal/domain"
)

// Builder assembles journey timelines. The timeline is derived, never
// stored: it is rebuilt from the customer snapshot on every request.
type Builder struct {
	// Clock supplies the timestamp for the current-status event.
	// Overridable in tests; defaults to time.Now.
	Clock func() time.Time
}

// NewBuilder creates a journey builder.
func NewBuilder() *Builder {
	return &Builder{Clock: time.Now}
}

// Build returns the customer's lifecycle events in chronological
// order. Always non-empty: even a bare profile yields an account
// creation marker and a current-status event.
func (b *Builder) Build(c *domain.Customer) []domain.JourneyEvent {
	now := b.Clock()
	var events []domain.JourneyEvent

	created := c.CreatedAt
	if created.IsZero() {
		created = now
	}
	events = append(events, domain.JourneyEvent{
		Type:      domain.JourneyAccountCreated,
		Title:     "Account created",
		Timestamp: created,
	})

	if e, ok := firstTransaction(c.Transactions); ok {
		events = append(events, e)
	}
	events = append(events, conversions(c.CampaignHistory)...)
	if e, ok := consentUpdate(c.Consent); ok {
		events = append(events, e)
	}
	if e, ok := kycReview(c.KYC); ok {
		events = append(events, e)
	}
	if e, ok := lastActivity(c); ok {
		events = append(events, e)
	}
	events = append(events, domain.JourneyEvent{
		Type:        domain.JourneyCurrentStatus,
		Title:       "Current status",
		Description: fmt.Sprintf("Segment %s, %d products held", c.Segment, len(c.Products)),
		Timestamp:   now,
	})

	// The status event sorts with the rest: a future KYC deadline lands
	// after it, keeping the whole sequence time-ordered.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events
}

func firstTransaction(transactions []domain.Transaction) (domain.JourneyEvent, bool) {
	if len(transactions) == 0 {
		return domain.JourneyEvent{}, false
	}

	first := transactions[0]
	for _, tx := range transactions[1:] {
		if tx.Timestamp.Before(first.Timestamp) {
			first = tx
		}
	}

	return domain.JourneyEvent{
		Type:        domain.JourneyFirstTransaction,
		Title:       "First transaction",
		Description: fmt.Sprintf("%.2f in %s", first.Amount, first.Category),
		Timestamp:   first.Timestamp,
	}, true
}

// conversions emits one event per campaign conversion. Views and
// clicks stay off the timeline; only committed outcomes matter here.
func conversions(history []domain.CampaignInteraction) []domain.JourneyEvent {
	var events []domain.JourneyEvent
	for _, ci := range history {
		if ci.Type != domain.InteractionConvert {
			continue
		}

		title := "Converted on campaign"
		if ci.CampaignTitle != "" {
			title = "Converted on " + ci.CampaignTitle
		}
		events = append(events, domain.JourneyEvent{
			Type:        domain.JourneyCampaignConvert,
			Title:       title,
			Description: fmt.Sprintf("Campaign %s", ci.CampaignID),
			Timestamp:   ci.Timestamp,
		})
	}
	return events
}

func consentUpdate(consent domain.Consent) (domain.JourneyEvent, bool) {
	if consent.UpdatedAt.IsZero() {
		return domain.JourneyEvent{}, false
	}

	desc := "Opted out of marketing contact"
	if consent.OptIn {
		desc = "Opted in to marketing contact"
	}
	return domain.JourneyEvent{
		Type:        domain.JourneyConsentUpdated,
		Title:       "Consent updated",
		Description: desc,
		Timestamp:   consent.UpdatedAt,
	}, true
}

// kycReview marks the next verification deadline when one is recorded.
func kycReview(kyc domain.KYCRecord) (domain.JourneyEvent, bool) {
	if kyc.ExpiresAt.IsZero() {
		return domain.JourneyEvent{}, false
	}

	return domain.JourneyEvent{
		Type:        domain.JourneyKYCReview,
		Title:       "KYC review due",
		Description: fmt.Sprintf("Verification level %s expires", kyc.Level),
		Timestamp:   kyc.ExpiresAt,
	}, true
}

func lastActivity(c *domain.Customer) (domain.JourneyEvent, bool) {
	var latest time.Time
	var desc string
	for _, tx := range c.Transactions {
		if tx.Timestamp.After(latest) {
			latest = tx.Timestamp
			desc = fmt.Sprintf("Transaction of %.2f in %s", tx.Amount, tx.Category)
		}
	}
	for _, ci := range c.CampaignHistory {
		if ci.Timestamp.After(latest) {
			latest = ci.Timestamp
			desc = fmt.Sprintf("Campaign %s %s", ci.CampaignID, ci.Type)
		}
	}
	if latest.IsZero() {
		return domain.JourneyEvent{}, false
	}

	return domain.JourneyEvent{
		Type:        domain.JourneyLastActivity,
		Title:       "Last recorded activity",
		Description: desc,
		Timestamp:   latest,
	}, true
}
