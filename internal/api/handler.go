package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-crm/kestrel/internal/behavior"
	"github.com/opensource-crm/kestrel/internal/crm"
	"github.com/opensource-crm/kestrel/internal/dispatch"
	"github.com/opensource-crm/kestrel/internal/domain"
	"github.com/opensource-crm/kestrel/internal/journey"
	"github.com/opensource-crm/kestrel/internal/lead"
	"github.com/opensource-crm/kestrel/internal/nba"
)

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	profiles   *behavior.ProfileBuilder
	aggregator *crm.Aggregator
	leads      *lead.Scorer
	engine     *nba.Engine
	journeys   *journey.Builder
	dispatcher *dispatch.Dispatcher
	audit      domain.AuditLogger
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, profiles *behavior.ProfileBuilder, aggregator *crm.Aggregator, leads *lead.Scorer, engine *nba.Engine, journeys *journey.Builder, dispatcher *dispatch.Dispatcher, audit domain.AuditLogger, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		profiles:   profiles,
		aggregator: aggregator,
		leads:      leads,
		engine:     engine,
		journeys:   journeys,
		dispatcher: dispatcher,
		audit:      audit,
		version:    version,
	}
}

// IngestResponse is the response for POST /customers.
type IngestResponse struct {
	CustomerID string `json:"customerId"`
	Metadata   struct {
		TraceID  string `json:"traceId"`
		IngestMs int64  `json:"ingestMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// IngestCustomer handles POST /customers requests.
// Saves the snapshot, invalidates any memoized scoring and publishes
// an ingest event for the async worker.
func (h *Handler) IngestCustomer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}
	if req.Segment == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "segment is required",
		})
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	customer := req.ToCustomer(tenantID)

	if h.repo != nil {
		if err := h.repo.SaveCustomer(ctx, tenantID, customer); err != nil {
			slog.Error("failed to save customer", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save customer",
			})
			return
		}
	}

	// A fresh snapshot invalidates any memoized scoring
	if h.cache != nil {
		if err := h.cache.Delete(ctx, tenantID, "snapshot:"+customer.ID); err != nil {
			slog.Error("failed to invalidate cached snapshot", "error", err)
		}
	}

	if h.audit != nil {
		_ = h.audit.Log(ctx, tenantID, domain.AuditCreate, "customer", customer.ID, map[string]any{
			"segment": string(customer.Segment),
		})
	}

	// Hand off scoring to the worker pipeline
	if h.bus != nil {
		payload, _ := json.Marshal(map[string]string{
			"customerId": customer.ID,
			"tenantId":   tenantID,
			"traceId":    traceID,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicCustomerIngested, payload); err != nil {
			slog.Error("failed to publish ingest event", "error", err)
		}
	}

	resp := IngestResponse{CustomerID: customer.ID}
	resp.Metadata.TraceID = traceID
	resp.Metadata.IngestMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// GetCustomer retrieves a customer snapshot by ID.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	customerID := chi.URLParam(r, "id")

	customer, ok := h.loadCustomer(w, r, tenantID, customerID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

// GetProfile derives the behavior profile for a customer on demand.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	customerID := chi.URLParam(r, "id")

	customer, ok := h.loadCustomer(w, r, tenantID, customerID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.profiles.Build(customer))
}

// GetCRMProfile derives the CRM health profile for a customer on demand.
func (h *Handler) GetCRMProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	customerID := chi.URLParam(r, "id")

	customer, ok := h.loadCustomer(w, r, tenantID, customerID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.aggregator.BuildProfile(customer))
}

// GetJourney builds the chronological journey timeline for a customer.
func (h *Handler) GetJourney(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	customerID := chi.URLParam(r, "id")

	customer, ok := h.loadCustomer(w, r, tenantID, customerID)
	if !ok {
		return
	}

	events := h.journeys.Build(customer)

	writeJSON(w, http.StatusOK, map[string]any{
		"customerId": customerID,
		"events":     events,
		"count":      len(events),
	})
}

// GetActions generates ranked next-best-actions for a customer.
// Accepts an optional ?max= query parameter to cap the list.
func (h *Handler) GetActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	customerID := chi.URLParam(r, "id")

	customer, ok := h.loadCustomer(w, r, tenantID, customerID)
	if !ok {
		return
	}

	maxActions := 0
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "max must be a positive integer",
			})
			return
		}
		maxActions = n
	}

	result, err := h.engine.Generate(&nba.GenerateInput{
		Customer:   customer,
		Behavior:   h.profiles.Build(customer),
		CRM:        h.aggregator.BuildProfile(customer),
		MaxActions: maxActions,
	})
	if err != nil {
		slog.Error("action generation failed", "customer_id", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "action generation failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customerId":     customerID,
		"actions":        result.Actions,
		"count":          len(result.Actions),
		"rulesEvaluated": result.RulesEvaluated,
		"rulesFired":     result.RulesFired,
	})
}

// GetSnapshot returns the latest persisted scoring for a customer.
// Consults the cache before falling back to the repository.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	customerID := chi.URLParam(r, "id")

	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	if h.cache != nil {
		if snap, err := h.cache.GetSnapshot(ctx, tenantID, customerID); err == nil && snap != nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	snap, err := h.repo.GetLatestSnapshot(ctx, tenantID, customerID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no scoring snapshot for customer",
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// LeadRequest identifies one customer to score as a lead.
type LeadRequest struct {
	CustomerID      string    `json:"customerId"`
	LastContactDate time.Time `json:"lastContactDate,omitempty"`
}

// ScoreLeadsRequest is the request body for POST /leads/score.
// An empty list scores every customer of the tenant.
type ScoreLeadsRequest struct {
	Leads []LeadRequest `json:"leads,omitempty"`
}

// ScoreLeads scores and ranks a set of customers as sales leads.
func (h *Handler) ScoreLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req ScoreLeadsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var scored []*domain.ScoredLead

	if len(req.Leads) == 0 {
		customers, err := h.repo.ListCustomers(ctx, tenantID)
		if err != nil {
			slog.Error("failed to list customers", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to list customers",
			})
			return
		}
		for _, c := range customers {
			scored = append(scored, h.leads.Score(c, domain.LeadContext{LastContactDate: c.UpdatedAt}))
		}
	} else {
		for _, lr := range req.Leads {
			c, err := h.repo.GetCustomer(ctx, tenantID, lr.CustomerID)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error": "customer not found: " + lr.CustomerID,
				})
				return
			}
			scored = append(scored, h.leads.Score(c, domain.LeadContext{LastContactDate: lr.LastContactDate}))
		}
	}

	lead.Rank(scored)

	writeJSON(w, http.StatusOK, map[string]any{
		"leads": scored,
		"count": len(scored),
	})
}

// GetAggregateMetrics rolls every customer of the tenant into
// population-level CRM metrics.
func (h *Handler) GetAggregateMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	customers, err := h.repo.ListCustomers(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list customers", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list customers",
		})
		return
	}

	writeJSON(w, http.StatusOK, h.aggregator.Aggregate(customers))
}

// ExecuteActionRequest is the request body for POST /actions/execute.
type ExecuteActionRequest struct {
	CustomerID string         `json:"customerId"`
	ActionID   string         `json:"actionId"`
	Channel    domain.Channel `json:"channel"`
}

// ExecuteAction dispatches a recommended action on one channel.
// The action must come from the customer's latest scoring snapshot;
// the dispatcher re-checks consent and the daily frequency cap.
func (h *Handler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req ExecuteActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.CustomerID == "" || req.ActionID == "" || req.Channel == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customerId, actionId and channel are required",
		})
		return
	}

	customer, ok := h.loadCustomer(w, r, tenantID, req.CustomerID)
	if !ok {
		return
	}

	var snap *domain.ScoreSnapshot
	if h.cache != nil {
		snap, _ = h.cache.GetSnapshot(ctx, tenantID, req.CustomerID)
	}
	if snap == nil && h.repo != nil {
		var err error
		snap, err = h.repo.GetLatestSnapshot(ctx, tenantID, req.CustomerID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no scoring snapshot for customer",
			})
			return
		}
	}

	var action *domain.NextBestAction
	for i := range snap.Actions {
		if snap.Actions[i].ID == req.ActionID {
			action = &snap.Actions[i]
			break
		}
	}
	if action == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "action not found in latest snapshot",
		})
		return
	}

	if err := h.dispatcher.Execute(ctx, customer, action, req.Channel); err != nil {
		switch {
		case errors.Is(err, dispatch.ErrConsentRequired):
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "customer has not consented to marketing contact",
			})
		case errors.Is(err, dispatch.ErrFrequencyCapped):
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "daily dispatch cap reached for customer",
			})
		case errors.Is(err, dispatch.ErrChannelNotOffered):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "channel is not offered by this action",
			})
		default:
			slog.Error("dispatch failed", "action_id", req.ActionID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "dispatch failed",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "dispatched",
		"actionId":   req.ActionID,
		"customerId": req.CustomerID,
		"channel":    string(req.Channel),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an action rule.
type CreateRuleRequest struct {
	ID                       string                   `json:"id"`
	Name                     string                   `json:"name"`
	Description              string                   `json:"description,omitempty"`
	Expression               string                   `json:"expression"`
	Order                    int                      `json:"order"`
	Title                    string                   `json:"title"`
	Category                 domain.ActionCategory    `json:"category"`
	Priority                 domain.ActionPriority    `json:"priority"`
	BaseConfidence           float64                  `json:"baseConfidence"`
	ExpectedRevenue          float64                  `json:"expectedRevenue"`
	ShortReasoning           string                   `json:"shortReasoning"`
	LongReasoning            string                   `json:"longReasoning,omitempty"`
	Channels                 []domain.Channel         `json:"channels"`
	Factors                  []domain.ReasoningFactor `json:"factors,omitempty"`
	HistoricalConversionRate float64                  `json:"historicalConversionRate,omitempty"`
	Enabled                  bool                     `json:"enabled"`
}

// CreateRule creates a new action rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and title are required",
		})
		return
	}
	if len(req.Channels) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one channel is required",
		})
		return
	}

	ruleConfig := &domain.ActionRuleConfig{
		ID:                       req.ID,
		TenantID:                 GlobalTenantID,
		Name:                     req.Name,
		Description:              req.Description,
		Version:                  "1.0.0",
		Expression:               req.Expression,
		Order:                    req.Order,
		Title:                    req.Title,
		Category:                 req.Category,
		Priority:                 req.Priority,
		BaseConfidence:           req.BaseConfidence,
		ExpectedRevenue:          req.ExpectedRevenue,
		ShortReasoning:           req.ShortReasoning,
		LongReasoning:            req.LongReasoning,
		Channels:                 req.Channels,
		Factors:                  req.Factors,
		HistoricalConversionRate: req.HistoricalConversionRate,
		Enabled:                  req.Enabled,
	}

	// Validate expression and factor weights by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	// Persist to repository (global tenant ID)
	if h.repo != nil {
		if err := h.repo.SaveActionRule(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save action rule", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("action rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule soft-deletes a rule and auto-reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteActionRule(ctx, GlobalTenantID, ruleID); err != nil {
			slog.Error("failed to delete action rule", "id", ruleID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}

		dbRules, err := h.repo.ListActionRules(ctx, GlobalTenantID)
		if err != nil {
			slog.Error("failed to reload rules after delete", "error", err)
		} else if err := h.engine.ReloadRules(dbRules); err != nil {
			slog.Error("failed to reload rules into engine", "error", err)
		}
	}

	slog.Info("action rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListActionRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// loadCustomer fetches a customer and writes the error response itself
// when the lookup fails.
func (h *Handler) loadCustomer(w http.ResponseWriter, r *http.Request, tenantID, customerID string) (*domain.Customer, bool) {
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return nil, false
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return nil, false
	}

	customer, err := h.repo.GetCustomer(r.Context(), tenantID, customerID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "customer not found",
		})
		return nil, false
	}

	return customer, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
