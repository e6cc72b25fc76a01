// Package worker provides async scoring for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-crm/kestrel/internal/behavior"
	"github.com/opensource-crm/kestrel/internal/crm"
	"github.com/opensource-crm/kestrel/internal/domain"
	"github.com/opensource-crm/kestrel/internal/lead"
	"github.com/opensource-crm/kestrel/internal/nba"
)

// Worker scores customers asynchronously from the EventBus.
type Worker struct {
	bus        domain.EventBus
	repo       domain.Repository
	cache      domain.Cache
	profiles   *behavior.ProfileBuilder
	aggregator *crm.Aggregator
	leads      *lead.Scorer
	engine     *nba.Engine
	version    string

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async scoring worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, profiles *behavior.ProfileBuilder, aggregator *crm.Aggregator, leads *lead.Scorer, engine *nba.Engine, version string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		repo:       repo,
		cache:      cache,
		profiles:   profiles,
		aggregator: aggregator,
		leads:      leads,
		engine:     engine,
		version:    version,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicCustomerIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicCustomerIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.scoreCustomer(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicCustomerIngested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.scoreCustomer(ctx, msg.TenantID, msg)
}

// CustomerMessage is the message payload for customer scoring.
type CustomerMessage struct {
	CustomerID string `json:"customerId"`
	TenantID   string `json:"tenantId"`
	TraceID    string `json:"traceId"`
}

// ScoredMessage is the payload published after a scoring pass.
type ScoredMessage struct {
	SnapshotID       string             `json:"snapshotId"`
	CustomerID       string             `json:"customerId"`
	LeadScore        float64            `json:"leadScore"`
	Temperature      domain.Temperature `json:"temperature"`
	ChurnProbability float64            `json:"churnProbability"`
	ChurnTier        domain.ChurnTier   `json:"churnTier"`
	ActionCount      int                `json:"actionCount"`
	TraceID          string             `json:"traceId"`
}

// scoreCustomer runs the full scoring pipeline for one customer.
func (w *Worker) scoreCustomer(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var custMsg CustomerMessage
	if err := json.Unmarshal(msg.Payload, &custMsg); err != nil {
		slog.Error("failed to parse customer message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if custMsg.TenantID != "" {
		tenantID = custMsg.TenantID
	}

	traceID := custMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("scoring customer",
		"customer_id", custMsg.CustomerID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Load the customer snapshot
	customer, err := w.repo.GetCustomer(ctx, tenantID, custMsg.CustomerID)
	if err != nil {
		slog.Error("failed to load customer",
			"customer_id", custMsg.CustomerID,
			"error", err,
		)
		return err
	}

	// 2. Derive behavior and CRM profiles
	profile := w.profiles.Build(customer)
	crmProfile := w.aggregator.BuildProfile(customer)

	// 3. Score the lead
	scored := w.leads.Score(customer, domain.LeadContext{
		LastContactDate: customer.UpdatedAt,
	})

	// 4. Generate next-best-actions
	genResult, err := w.engine.Generate(&nba.GenerateInput{
		Customer: customer,
		Behavior: profile,
		CRM:      crmProfile,
	})
	if err != nil {
		slog.Error("action generation failed",
			"customer_id", custMsg.CustomerID,
			"error", err,
		)
		return err
	}

	actions := make([]domain.NextBestAction, len(genResult.Actions))
	for i, a := range genResult.Actions {
		actions[i] = *a
	}
	if len(genResult.Actions) > 0 {
		scored.NextAction = genResult.Actions[0]
	}

	// 5. Persist the snapshot
	snap := &domain.ScoreSnapshot{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		CustomerID:       customer.ID,
		Timestamp:        time.Now().UTC(),
		LeadScore:        scored.Score,
		Temperature:      scored.Temperature,
		ChurnProbability: crmProfile.Retention.ChurnProbability,
		ChurnTier:        crmProfile.Retention.ChurnTier,
		Actions:          actions,
		Metadata: domain.SnapshotMetadata{
			TraceID:        traceID,
			BuildMs:        time.Since(start).Milliseconds(),
			RulesEvaluated: genResult.RulesEvaluated,
			RulesFired:     genResult.RulesFired,
			EngineVersion:  w.version,
		},
	}

	if w.repo != nil {
		if err := w.repo.SaveSnapshot(ctx, tenantID, snap); err != nil {
			slog.Error("failed to save snapshot",
				"customer_id", customer.ID,
				"error", err,
			)
		}
	}
	if w.cache != nil {
		if err := w.cache.SetSnapshot(ctx, tenantID, customer.ID, snap, 5*time.Minute); err != nil {
			slog.Error("failed to cache snapshot",
				"customer_id", customer.ID,
				"error", err,
			)
		}
	}

	// 6. Publish scored event
	scoredPayload, _ := json.Marshal(ScoredMessage{
		SnapshotID:       snap.ID,
		CustomerID:       customer.ID,
		LeadScore:        snap.LeadScore,
		Temperature:      snap.Temperature,
		ChurnProbability: snap.ChurnProbability,
		ChurnTier:        snap.ChurnTier,
		ActionCount:      len(actions),
		TraceID:          traceID,
	})
	if err := w.bus.Publish(ctx, tenantID, domain.TopicCustomerScored, scoredPayload); err != nil {
		slog.Error("failed to publish scored event",
			"customer_id", customer.ID,
			"error", err,
		)
	}

	// 7. Critical churn raises an alert
	if snap.ChurnTier == domain.ChurnCritical {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicChurnAlert, scoredPayload); err != nil {
			slog.Error("failed to publish churn alert",
				"customer_id", customer.ID,
				"error", err,
			)
		}
	}

	slog.Info("customer scored",
		"customer_id", customer.ID,
		"tenant_id", tenantID,
		"lead_score", snap.LeadScore,
		"temperature", snap.Temperature,
		"churn_tier", snap.ChurnTier,
		"actions", len(actions),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
