// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-crm/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveCustomer upserts a customer snapshot with tenant isolation.
// History lists and compliance records are stored as JSON documents;
// the engine treats them as opaque blobs between scoring passes.
func (r *SQLRepository) SaveCustomer(ctx context.Context, tenantID string, c *domain.Customer) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: customer ID is required", ErrInvalidInput)
	}

	products, _ := json.Marshal(c.Products)
	transactions, _ := json.Marshal(c.Transactions)
	campaigns, _ := json.Marshal(c.CampaignHistory)
	service, _ := json.Marshal(c.ServiceInteractions)
	engagement, _ := json.Marshal(c.Engagement)
	consent, _ := json.Marshal(c.Consent)
	kyc, _ := json.Marshal(c.KYC)

	now := time.Now().UTC()
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO customers (
			id, tenant_id, name, email, phone, date_of_birth, address,
			balance, currency, products, segment, transactions,
			campaign_history, service_interactions, engagement, consent, kyc,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			date_of_birth = excluded.date_of_birth,
			address = excluded.address,
			balance = excluded.balance,
			currency = excluded.currency,
			products = excluded.products,
			segment = excluded.segment,
			transactions = excluded.transactions,
			campaign_history = excluded.campaign_history,
			service_interactions = excluded.service_interactions,
			engagement = excluded.engagement,
			consent = excluded.consent,
			kyc = excluded.kyc,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.Name, c.Email, c.Phone, c.DateOfBirth, c.Address,
		c.Balance, c.Currency, string(products), string(c.Segment), string(transactions),
		string(campaigns), string(service), string(engagement), string(consent), string(kyc),
		createdAt, now,
	)
	return err
}

// GetCustomer retrieves a customer by ID with tenant isolation.
func (r *SQLRepository) GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, email, phone, date_of_birth, address,
			   balance, currency, products, segment, transactions,
			   campaign_history, service_interactions, engagement, consent, kyc,
			   created_at, updated_at
		FROM customers
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, customerID)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListCustomers retrieves all customers for a tenant.
func (r *SQLRepository) ListCustomers(ctx context.Context, tenantID string) ([]*domain.Customer, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, email, phone, date_of_birth, address,
			   balance, currency, products, segment, transactions,
			   campaign_history, service_interactions, engagement, consent, kyc,
			   created_at, updated_at
		FROM customers
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}

	return customers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	var email, phone, dob, address, currency sql.NullString
	var segment string
	var products, transactions, campaigns, service, engagement, consent, kyc sql.NullString

	err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &email, &phone, &dob, &address,
		&c.Balance, &currency, &products, &segment, &transactions,
		&campaigns, &service, &engagement, &consent, &kyc,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Email = email.String
	c.Phone = phone.String
	c.DateOfBirth = dob.String
	c.Address = address.String
	c.Currency = currency.String
	c.Segment = domain.Segment(segment)

	unmarshalIfSet(products, &c.Products)
	unmarshalIfSet(transactions, &c.Transactions)
	unmarshalIfSet(campaigns, &c.CampaignHistory)
	unmarshalIfSet(service, &c.ServiceInteractions)
	unmarshalIfSet(engagement, &c.Engagement)
	unmarshalIfSet(consent, &c.Consent)
	unmarshalIfSet(kyc, &c.KYC)

	return &c, nil
}

func unmarshalIfSet(col sql.NullString, dest any) {
	if col.Valid && col.String != "" {
		_ = json.Unmarshal([]byte(col.String), dest)
	}
}

// SaveActionRule upserts an action rule configuration with tenant isolation.
func (r *SQLRepository) SaveActionRule(ctx context.Context, tenantID string, rule *domain.ActionRuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	channels, _ := json.Marshal(rule.Channels)
	factors, _ := json.Marshal(rule.Factors)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO action_rules (
			id, tenant_id, name, description, version, expression, rule_order,
			title, category, priority, base_confidence, expected_revenue,
			short_reasoning, long_reasoning, channels, factors,
			historical_conversion_rate, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			rule_order = excluded.rule_order,
			title = excluded.title,
			category = excluded.category,
			priority = excluded.priority,
			base_confidence = excluded.base_confidence,
			expected_revenue = excluded.expected_revenue,
			short_reasoning = excluded.short_reasoning,
			long_reasoning = excluded.long_reasoning,
			channels = excluded.channels,
			factors = excluded.factors,
			historical_conversion_rate = excluded.historical_conversion_rate,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description, rule.Version,
		rule.Expression, rule.Order,
		rule.Title, string(rule.Category), string(rule.Priority),
		rule.BaseConfidence, rule.ExpectedRevenue,
		rule.ShortReasoning, rule.LongReasoning, string(channels), string(factors),
		rule.HistoricalConversionRate, enabled,
		now, now,
	)
	return err
}

// GetActionRule retrieves the latest enabled version of a rule with tenant isolation.
func (r *SQLRepository) GetActionRule(ctx context.Context, tenantID string, ruleID string) (*domain.ActionRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, rule_order,
			   title, category, priority, base_confidence, expected_revenue,
			   short_reasoning, long_reasoning, channels, factors,
			   historical_conversion_rate, enabled, created_at, updated_at
		FROM action_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID)
	rule, err := scanActionRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListActionRules retrieves all enabled rules for a tenant in evaluation order.
func (r *SQLRepository) ListActionRules(ctx context.Context, tenantID string) ([]*domain.ActionRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, rule_order,
			   title, category, priority, base_confidence, expected_revenue,
			   short_reasoning, long_reasoning, channels, factors,
			   historical_conversion_rate, enabled, created_at, updated_at
		FROM action_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY rule_order, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ActionRuleConfig
	for rows.Next() {
		rule, err := scanActionRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanActionRule(row rowScanner) (*domain.ActionRuleConfig, error) {
	var rule domain.ActionRuleConfig
	var description, shortReasoning, longReasoning sql.NullString
	var category, priority string
	var channels, factors sql.NullString
	var enabled int

	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description, &rule.Version,
		&rule.Expression, &rule.Order,
		&rule.Title, &category, &priority,
		&rule.BaseConfidence, &rule.ExpectedRevenue,
		&shortReasoning, &longReasoning, &channels, &factors,
		&rule.HistoricalConversionRate, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.ShortReasoning = shortReasoning.String
	rule.LongReasoning = longReasoning.String
	rule.Category = domain.ActionCategory(category)
	rule.Priority = domain.ActionPriority(priority)
	rule.Enabled = enabled == 1

	unmarshalIfSet(channels, &rule.Channels)
	unmarshalIfSet(factors, &rule.Factors)

	return &rule, nil
}

// DeleteActionRule soft-deletes a rule by setting enabled = 0.
func (r *SQLRepository) DeleteActionRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE action_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveSnapshot stores a score snapshot with tenant isolation.
func (r *SQLRepository) SaveSnapshot(ctx context.Context, tenantID string, snap *domain.ScoreSnapshot) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	actions, _ := json.Marshal(snap.Actions)
	metadata, _ := json.Marshal(snap.Metadata)

	query := `
		INSERT INTO score_snapshots (
			id, tenant_id, customer_id, timestamp,
			lead_score, temperature, churn_probability, churn_tier,
			actions, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		snap.ID, tenantID, snap.CustomerID, snap.Timestamp,
		snap.LeadScore, string(snap.Temperature), snap.ChurnProbability, string(snap.ChurnTier),
		string(actions), string(metadata),
	)
	return err
}

// GetSnapshot retrieves a snapshot by ID with tenant isolation.
func (r *SQLRepository) GetSnapshot(ctx context.Context, tenantID string, snapID string) (*domain.ScoreSnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, customer_id, timestamp,
			   lead_score, temperature, churn_probability, churn_tier,
			   actions, metadata
		FROM score_snapshots
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, snapID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return snap, err
}

// GetLatestSnapshot retrieves the most recent snapshot for a customer.
func (r *SQLRepository) GetLatestSnapshot(ctx context.Context, tenantID string, customerID string) (*domain.ScoreSnapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, customer_id, timestamp,
			   lead_score, temperature, churn_probability, churn_tier,
			   actions, metadata
		FROM score_snapshots
		WHERE tenant_id = ? AND customer_id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, customerID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return snap, err
}

func scanSnapshot(row rowScanner) (*domain.ScoreSnapshot, error) {
	var snap domain.ScoreSnapshot
	var temperature, churnTier string
	var actions, metadata string

	err := row.Scan(
		&snap.ID, &snap.TenantID, &snap.CustomerID, &snap.Timestamp,
		&snap.LeadScore, &temperature, &snap.ChurnProbability, &churnTier,
		&actions, &metadata,
	)
	if err != nil {
		return nil, err
	}

	snap.Temperature = domain.Temperature(temperature)
	snap.ChurnTier = domain.ChurnTier(churnTier)
	_ = json.Unmarshal([]byte(actions), &snap.Actions)
	_ = json.Unmarshal([]byte(metadata), &snap.Metadata)

	return &snap, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
