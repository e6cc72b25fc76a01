package domain

import "context"

// AuditAction is the fixed enumeration of auditable actions.
type AuditAction string

const (
	AuditView            AuditAction = "VIEW"
	AuditCreate          AuditAction = "CREATE"
	AuditUpdate          AuditAction = "UPDATE"
	AuditDelete          AuditAction = "DELETE"
	AuditExport          AuditAction = "EXPORT"
	AuditSearch          AuditAction = "SEARCH"
	AuditRoleChange      AuditAction = "ROLE_CHANGE"
	AuditConsentChange   AuditAction = "CONSENT_CHANGE"
	AuditCampaignExecute AuditAction = "CAMPAIGN_EXECUTE"
)

// AuditLogger is the port every gated execution must report through.
// Persistence and formatting of the log are the collaborator's concern;
// the engine only guarantees the call is made. ResourceID may be empty.
type AuditLogger interface {
	Log(ctx context.Context, tenantID string, action AuditAction, resourceType string, resourceID string, details map[string]any) error
}

// AuditEntry is the structured payload a bus-backed logger publishes.
type AuditEntry struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenantId"`
	Action       AuditAction    `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Timestamp    int64          `json:"timestamp"` // unix nanos
}
