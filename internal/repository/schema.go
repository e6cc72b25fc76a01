package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT,
    phone TEXT,
    date_of_birth TEXT,
    address TEXT,
    balance REAL NOT NULL DEFAULT 0,
    currency TEXT,
    products TEXT,
    segment TEXT NOT NULL,
    transactions TEXT,
    campaign_history TEXT,
    service_interactions TEXT,
    engagement TEXT,
    consent TEXT,
    kyc TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_customers_tenant ON customers(tenant_id);
CREATE INDEX IF NOT EXISTS idx_customers_segment ON customers(tenant_id, segment);
`

const schemaActionRules = `
CREATE TABLE IF NOT EXISTS action_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    rule_order INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL,
    category TEXT NOT NULL,
    priority TEXT NOT NULL,
    base_confidence REAL NOT NULL DEFAULT 0,
    expected_revenue REAL NOT NULL DEFAULT 0,
    short_reasoning TEXT,
    long_reasoning TEXT,
    channels TEXT NOT NULL,
    factors TEXT,
    historical_conversion_rate REAL NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_action_rules_tenant ON action_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_action_rules_enabled ON action_rules(tenant_id, enabled);
`

const schemaScoreSnapshots = `
CREATE TABLE IF NOT EXISTS score_snapshots (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    lead_score REAL NOT NULL,
    temperature TEXT NOT NULL,
    churn_probability REAL NOT NULL,
    churn_tier TEXT NOT NULL,
    actions TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_tenant ON score_snapshots(tenant_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_customer ON score_snapshots(tenant_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON score_snapshots(tenant_id, customer_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCustomers,
		schemaActionRules,
		schemaScoreSnapshots,
	}
}
