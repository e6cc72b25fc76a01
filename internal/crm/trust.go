package crm

import (
	"github.com/opensource-crm/kestrel/internal/domain"
)

// trustMetrics derives data quality and compliance posture.
func (a *Aggregator) trustMetrics(c *domain.Customer, days int) domain.TrustComplianceMetrics {
	completeness, missing := a.profileCompleteness(c)
	coverage := consentCoverage(c.Consent)
	activity := activityScore(days)

	return domain.TrustComplianceMetrics{
		ConsentCoverage:     coverage,
		DataQualityScore:    clamp(0.4*completeness+0.4*activity+0.2*coverage, 0, 100),
		ProfileCompleteness: completeness,
		KYCStatus:           a.kycStatus(completeness),
		MissingFields:       missing,
	}
}

// profileCompleteness scores the share of required fields present and
// lists the ones missing.
func (a *Aggregator) profileCompleteness(c *domain.Customer) (float64, []string) {
	fields := a.cfg.RequiredFields
	if len(fields) == 0 {
		return 100, nil
	}

	var missing []string
	for _, f := range fields {
		if !fieldPresent(c, f) {
			missing = append(missing, f)
		}
	}

	present := len(fields) - len(missing)
	return clamp(float64(present)/float64(len(fields))*100, 0, 100), missing
}

// fieldPresent checks one required field by its configured name.
// Unknown names count as present so a typo in config cannot tank every
// customer's completeness.
func fieldPresent(c *domain.Customer, field string) bool {
	switch field {
	case "name":
		return c.Name != ""
	case "email":
		return c.Email != ""
	case "phone":
		return c.Phone != ""
	case "dateOfBirth":
		return c.DateOfBirth != ""
	case "address":
		return c.Address != ""
	case "segment":
		return c.Segment != ""
	case "consent":
		return c.Consent.OptIn || !c.Consent.UpdatedAt.IsZero()
	case "kyc":
		return c.KYC.Level != ""
	default:
		return true
	}
}

// consentCoverage measures how much of the marketing surface the
// customer has approved. Opted-out customers score zero; an opted-in
// record with no channel list counts as blanket approval.
func consentCoverage(consent domain.Consent) float64 {
	if !consent.OptIn {
		return 0
	}
	if len(consent.Channels) == 0 {
		return 100
	}

	approved := 0
	for _, ch := range consent.Channels {
		if ch.IsMarketing() {
			approved++
		}
	}
	return clamp(float64(approved)/float64(len(domain.MarketingChannels))*100, 0, 100)
}

// activityScore decays from 100 at 30 days of inactivity to 0 at 180.
func activityScore(days int) float64 {
	if days <= 30 {
		return 100
	}
	return clamp(100-float64(days-30)*100/150, 0, 100)
}

// kycStatus buckets profile completeness into a verification state.
func (a *Aggregator) kycStatus(completeness float64) domain.KYCStatus {
	switch {
	case completeness >= a.cfg.KYCCompleteCutoff:
		return domain.KYCComplete
	case completeness >= a.cfg.KYCPartialCutoff:
		return domain.KYCPartial
	case completeness >= a.cfg.KYCPendingCutoff:
		return domain.KYCPending
	default:
		return domain.KYCExpired
	}
}
