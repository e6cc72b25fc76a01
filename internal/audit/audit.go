// Package audit provides the audit trail implementations behind the
// AuditLogger port.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-crm/kestrel/internal/domain"
)

// BusLogger publishes audit entries to the event bus. Downstream
// consumers (SIEM export, compliance archive) subscribe to the audit
// topic; the logger itself never blocks on them.
type BusLogger struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// NewBusLogger creates an audit logger backed by the event bus.
func NewBusLogger(bus domain.EventBus, logger *slog.Logger) *BusLogger {
	return &BusLogger{
		bus:    bus,
		logger: logger,
	}
}

// Log publishes one audit entry. The entry is also mirrored to the
// structured log so operators see the trail without a bus consumer.
func (l *BusLogger) Log(ctx context.Context, tenantID string, action domain.AuditAction, resourceType string, resourceID string, details map[string]any) error {
	entry := domain.AuditEntry{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		Timestamp:    time.Now().UnixNano(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	l.logger.InfoContext(ctx, "audit",
		"tenant_id", tenantID,
		"action", string(action),
		"resource_type", resourceType,
		"resource_id", resourceID,
	)

	if err := l.bus.Publish(ctx, tenantID, domain.TopicAudit, payload); err != nil {
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}
	return nil
}

// Nop is an audit logger that records nothing. Used in tests and in
// tooling contexts where no trail is wanted.
type Nop struct{}

// Log discards the entry.
func (Nop) Log(context.Context, string, domain.AuditAction, string, string, map[string]any) error {
	return nil
}
