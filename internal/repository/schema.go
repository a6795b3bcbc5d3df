package repository

// Schema definitions for the Shrike database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    merchant_id TEXT NOT NULL,
    amount REAL NOT NULL,
    category TEXT NOT NULL,
    type TEXT NOT NULL,
    old_balance_orig REAL NOT NULL DEFAULT 0,
    new_balance_orig REAL NOT NULL DEFAULT 0,
    old_balance_dest REAL NOT NULL DEFAULT 0,
    new_balance_dest REAL NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
`

const schemaRules = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    conditions TEXT NOT NULL,
    score_impact INTEGER NOT NULL,
    action TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(is_active, priority);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    status TEXT NOT NULL,
    assigned_queue TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
CREATE INDEX IF NOT EXISTS idx_alerts_queue ON alerts(assigned_queue, status);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
`

const schemaCases = `
CREATE TABLE IF NOT EXISTS cases (
    id TEXT PRIMARY KEY,
    alert_id TEXT NOT NULL,
    status TEXT NOT NULL,
    analyst_id TEXT,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_alert ON cases(alert_id);
`

const schemaCaseNotes = `
CREATE TABLE IF NOT EXISTS case_notes (
    id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL,
    analyst_id TEXT,
    note TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_case_notes_case ON case_notes(case_id, created_at);
`

const schemaSARs = `
CREATE TABLE IF NOT EXISTS sars (
    id TEXT PRIMARY KEY,
    sar_id TEXT NOT NULL UNIQUE,
    case_id TEXT NOT NULL,
    customer_name TEXT,
    amount REAL NOT NULL DEFAULT 0,
    description TEXT,
    status TEXT NOT NULL,
    filing_date TIMESTAMP,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sars_status ON sars(status);
CREATE INDEX IF NOT EXISTS idx_sars_case ON sars(case_id);
`

const schemaModelResults = `
CREATE TABLE IF NOT EXISTS model_results (
    model_name TEXT PRIMARY KEY,
    accuracy REAL NOT NULL,
    f1_score REAL NOT NULL,
    precision_score REAL NOT NULL,
    recall REAL NOT NULL,
    auc_roc REAL NOT NULL,
    trained_at TIMESTAMP
);
`

const schemaScoringConfigs = `
CREATE TABLE IF NOT EXISTS scoring_configs (
    version INTEGER PRIMARY KEY,
    mode TEXT NOT NULL,
    model_name TEXT NOT NULL,
    rule_weight REAL NOT NULL,
    model_weight REAL NOT NULL,
    alert_threshold INTEGER NOT NULL,
    risk_thresholds TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaRules,
		schemaAlerts,
		schemaCases,
		schemaCaseNotes,
		schemaSARs,
		schemaModelResults,
		schemaScoringConfigs,
	}
}
