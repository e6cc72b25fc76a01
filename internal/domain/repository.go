package domain

import (
	"context"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Customer snapshot operations
	SaveCustomer(ctx context.Context, tenantID string, customer *Customer) error
	GetCustomer(ctx context.Context, tenantID string, customerID string) (*Customer, error)
	ListCustomers(ctx context.Context, tenantID string) ([]*Customer, error)

	// Action rule configuration operations
	SaveActionRule(ctx context.Context, tenantID string, rule *ActionRuleConfig) error
	GetActionRule(ctx context.Context, tenantID string, ruleID string) (*ActionRuleConfig, error)
	ListActionRules(ctx context.Context, tenantID string) ([]*ActionRuleConfig, error)
	DeleteActionRule(ctx context.Context, tenantID string, ruleID string) error

	// Score snapshot operations
	SaveSnapshot(ctx context.Context, tenantID string, snap *ScoreSnapshot) error
	GetSnapshot(ctx context.Context, tenantID string, snapID string) (*ScoreSnapshot, error)
	GetLatestSnapshot(ctx context.Context, tenantID string, customerID string) (*ScoreSnapshot, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
