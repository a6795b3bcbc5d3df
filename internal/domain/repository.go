package domain

import (
	"context"
	"time"
)

// AlertFilter narrows alert listings for the dashboard.
type AlertFilter struct {
	Status AlertStatus
	Queue  string
	Limit  int
	Offset int
}

// SARFilter narrows SAR listings.
type SARFilter struct {
	Status SARStatus
	Search string
	Limit  int
	Offset int
}

// AlertTrendPoint is one day in the alerts-over-time series.
type AlertTrendPoint struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Alerts int    `json:"alerts"`
	Fraud  int    `json:"fraud"` // alerts at or above the high-risk line
}

// TransactionStats aggregates ingested volume for dashboard KPIs.
type TransactionStats struct {
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

// AlertStats aggregates alert volume for dashboard KPIs.
type AlertStats struct {
	Total       int64   `json:"total"`
	Pending     int64   `json:"pending"`
	Reviewed    int64   `json:"reviewed"`
	Dismissed   int64   `json:"dismissed"`
	HighRisk    int64   `json:"highRisk"`
	FraudAmount float64 `json:"fraudAmount"`
}

// Repository defines the interface for data persistence.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	CountTransactionsByCustomer(ctx context.Context, customerID string, since time.Time) (int64, error)
	GetTransactionStats(ctx context.Context) (*TransactionStats, error)

	// Rule operations
	SaveRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, ruleID string) (*Rule, error)
	ListRules(ctx context.Context, activeOnly bool) ([]*Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error

	// Alert operations
	SaveAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, alertID string) (*Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*Alert, error)
	UpdateAlertStatus(ctx context.Context, alertID string, status AlertStatus) error
	GetAlertStats(ctx context.Context, highRiskMin int) (*AlertStats, error)
	GetAlertTrend(ctx context.Context, since time.Time, highRiskMin int) ([]AlertTrendPoint, error)

	// Case operations
	SaveCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, caseID string) (*Case, error)
	ListCases(ctx context.Context) ([]*Case, error)
	UpdateCase(ctx context.Context, c *Case) error // optimistic, checks Version
	AddCaseNote(ctx context.Context, note *CaseNote) error
	ListCaseNotes(ctx context.Context, caseID string) ([]CaseNote, error)

	// SAR operations
	SaveSAR(ctx context.Context, sar *SAR) error
	GetSAR(ctx context.Context, id string) (*SAR, error) // by ID or SARID
	ListSARs(ctx context.Context, filter SARFilter) ([]*SAR, error)
	UpdateSAR(ctx context.Context, sar *SAR) error // optimistic, checks Version
	GetSARStats(ctx context.Context) (*SARStats, error)
	CountSARs(ctx context.Context) (int64, error)

	// Model results (written by the offline training pipeline)
	SaveModelResult(ctx context.Context, result *ModelResult) error
	ListModelResults(ctx context.Context) ([]*ModelResult, error)

	// Scoring configuration (versioned; Save bumps the version)
	SaveScoringConfig(ctx context.Context, cfg *ScoringConfig) error
	GetScoringConfig(ctx context.Context) (*ScoringConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
