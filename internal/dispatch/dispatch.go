// Package dispatch executes recommended actions on a channel, with the
// consent gate and frequency cap enforced at the execution boundary.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-crm/kestrel/internal/domain"
)

// Execution refusal reasons. Callers map these to API responses.
var (
	ErrConsentRequired   = errors.New("customer has not consented to marketing contact")
	ErrFrequencyCapped   = errors.New("daily dispatch cap reached for customer")
	ErrChannelNotOffered = errors.New("channel is not offered by the action")
)

// Record is the event payload published after a successful dispatch.
type Record struct {
	ActionID     string         `json:"actionId"`
	RuleID       string         `json:"ruleId"`
	CustomerID   string         `json:"customerId"`
	TenantID     string         `json:"tenantId"`
	Channel      domain.Channel `json:"channel"`
	Title        string         `json:"title"`
	DispatchedAt int64          `json:"dispatchedAt"` // unix nanos
}

// Dispatcher executes actions. It never re-ranks or re-scores; its
// whole job is the last-line policy checks, the audit trail and the
// dispatched event.
type Dispatcher struct {
	cache  domain.Cache
	bus    domain.EventBus
	audit  domain.AuditLogger
	cfg    domain.ScoringConfig
	logger *slog.Logger

	// Clock supplies the dispatch timestamp and the daily cap bucket.
	// Overridable in tests; defaults to time.Now.
	Clock func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cache domain.Cache, bus domain.EventBus, auditLogger domain.AuditLogger, cfg domain.ScoringConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cache:  cache,
		bus:    bus,
		audit:  auditLogger,
		cfg:    cfg,
		logger: logger,
		Clock:  time.Now,
	}
}

// Execute dispatches one action for a customer on one channel.
//
// The consent gate is checked again here even though generation
// already filtered channels: consent may have changed between scoring
// and execution, and execution is the irreversible step. Every refusal
// is audited with its reason.
func (d *Dispatcher) Execute(ctx context.Context, c *domain.Customer, action *domain.NextBestAction, channel domain.Channel) error {
	tenantID := c.TenantID

	if !channelOffered(action, channel) {
		return ErrChannelNotOffered
	}

	if channel.IsMarketing() && !c.Consent.OptIn {
		d.auditRefusal(ctx, tenantID, action, channel, "consent_required")
		return ErrConsentRequired
	}

	limit := d.cfg.DailyDispatchCap
	if limit > 0 {
		count, err := d.cache.IncrementCounter(ctx, tenantID, d.capKey(c.ID), 24*time.Hour)
		if err != nil {
			return fmt.Errorf("failed to check dispatch cap: %w", err)
		}
		if count > int64(limit) {
			d.auditRefusal(ctx, tenantID, action, channel, "frequency_capped")
			return ErrFrequencyCapped
		}
	}

	record := Record{
		ActionID:     action.ID,
		RuleID:       action.RuleID,
		CustomerID:   c.ID,
		TenantID:     tenantID,
		Channel:      channel,
		Title:        action.Title,
		DispatchedAt: d.Clock().UnixNano(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch record: %w", err)
	}

	if err := d.bus.Publish(ctx, tenantID, domain.TopicActionDispatched, payload); err != nil {
		return fmt.Errorf("failed to publish dispatch event: %w", err)
	}

	if err := d.audit.Log(ctx, tenantID, domain.AuditCampaignExecute, "action", action.ID, map[string]any{
		"customer_id": c.ID,
		"rule_id":     action.RuleID,
		"channel":     string(channel),
	}); err != nil {
		return fmt.Errorf("failed to audit dispatch: %w", err)
	}

	d.logger.InfoContext(ctx, "action dispatched",
		"tenant_id", tenantID,
		"customer_id", c.ID,
		"action_id", action.ID,
		"channel", string(channel),
	)

	return nil
}

// capKey buckets the counter by customer and calendar day (UTC).
func (d *Dispatcher) capKey(customerID string) string {
	return fmt.Sprintf("dispatch:%s:%s", customerID, d.Clock().UTC().Format("2006-01-02"))
}

func (d *Dispatcher) auditRefusal(ctx context.Context, tenantID string, action *domain.NextBestAction, channel domain.Channel, reason string) {
	// Refusal auditing is best-effort; the refusal error wins.
	_ = d.audit.Log(ctx, tenantID, domain.AuditCampaignExecute, "action", action.ID, map[string]any{
		"customer_id": action.CustomerID,
		"channel":     string(channel),
		"refused":     reason,
	})
}

func channelOffered(action *domain.NextBestAction, channel domain.Channel) bool {
	for _, ch := range action.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}
