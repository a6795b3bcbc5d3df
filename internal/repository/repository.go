// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
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

// SaveTransaction stores an ingested transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, customer_id, merchant_id, amount, category, type,
			old_balance_orig, new_balance_orig, old_balance_dest, new_balance_dest,
			timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.CustomerID, tx.MerchantID,
		tx.Amount, tx.Category, tx.Type,
		tx.OldBalanceOrig, tx.NewBalanceOrig,
		tx.OldBalanceDest, tx.NewBalanceDest,
		tx.Timestamp, tx.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, customer_id, merchant_id, amount, category, type,
			   old_balance_orig, new_balance_orig, old_balance_dest, new_balance_dest,
			   timestamp, created_at
		FROM transactions
		WHERE id = ?
	`

	var tx domain.Transaction
	err := r.db.QueryRowContext(ctx, r.rebind(query), txID).Scan(
		&tx.ID, &tx.CustomerID, &tx.MerchantID,
		&tx.Amount, &tx.Category, &tx.Type,
		&tx.OldBalanceOrig, &tx.NewBalanceOrig,
		&tx.OldBalanceDest, &tx.NewBalanceDest,
		&tx.Timestamp, &tx.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tx, nil
}

// CountTransactionsByCustomer counts a customer's transactions since a point
// in time. Backs the velocity_count rule field.
func (r *SQLRepository) CountTransactionsByCustomer(ctx context.Context, customerID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM transactions
		WHERE customer_id = ? AND timestamp >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// GetTransactionStats aggregates ingested volume for dashboard KPIs.
func (r *SQLRepository) GetTransactionStats(ctx context.Context) (*domain.TransactionStats, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transactions`

	var stats domain.TransactionStats
	err := r.db.QueryRowContext(ctx, query).Scan(&stats.Count, &stats.TotalAmount)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// SaveRule inserts or updates a rule definition.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.Rule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode rule conditions: %w", err)
	}

	isActive := 0
	if rule.IsActive {
		isActive = 1
	}

	query := `
		INSERT INTO rules (
			id, name, description, conditions, score_impact, action, priority, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			conditions = excluded.conditions,
			score_impact = excluded.score_impact,
			action = excluded.action,
			priority = excluded.priority,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		string(conditions), rule.ScoreImpact, rule.Action,
		rule.Priority, isActive,
		rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetRule retrieves a rule by ID.
func (r *SQLRepository) GetRule(ctx context.Context, ruleID string) (*domain.Rule, error) {
	query := `
		SELECT id, name, description, conditions, score_impact, action, priority, is_active, created_at, updated_at
		FROM rules
		WHERE id = ?
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rule, err
}

// ListRules retrieves rules ordered by priority, ties broken by ID.
func (r *SQLRepository) ListRules(ctx context.Context, activeOnly bool) ([]*domain.Rule, error) {
	query := `
		SELECT id, name, description, conditions, score_impact, action, priority, is_active, created_at, updated_at
		FROM rules
	`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY priority, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeleteRule removes a rule definition.
func (r *SQLRepository) DeleteRule(ctx context.Context, ruleID string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM rules WHERE id = ?`), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var rule domain.Rule
	var conditions string
	var isActive int

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description,
		&conditions, &rule.ScoreImpact, &rule.Action,
		&rule.Priority, &isActive,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.IsActive = isActive == 1
	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to parse conditions for rule %s: %w", rule.ID, err)
	}

	return &rule, nil
}

// SaveAlert stores a new alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	query := `
		INSERT INTO alerts (
			id, transaction_id, risk_score, risk_level, status, assigned_queue, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.TransactionID, alert.RiskScore, alert.RiskLevel,
		alert.Status, alert.AssignedQueue, alert.CreatedAt, alert.UpdatedAt,
	)
	return err
}

const alertColumns = `
	a.id, a.transaction_id, a.risk_score, a.risk_level, a.status, a.assigned_queue,
	a.created_at, a.updated_at,
	t.id, t.customer_id, t.merchant_id, t.amount, t.category, t.type, t.timestamp
`

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var a domain.Alert
	var txID sql.NullString
	var customerID, merchantID, category, txType sql.NullString
	var amount sql.NullFloat64
	var timestamp sql.NullTime

	err := row.Scan(
		&a.ID, &a.TransactionID, &a.RiskScore, &a.RiskLevel, &a.Status, &a.AssignedQueue,
		&a.CreatedAt, &a.UpdatedAt,
		&txID, &customerID, &merchantID, &amount, &category, &txType, &timestamp,
	)
	if err != nil {
		return nil, err
	}

	if txID.Valid {
		a.Transaction = &domain.Transaction{
			ID:         txID.String,
			CustomerID: customerID.String,
			MerchantID: merchantID.String,
			Amount:     amount.Float64,
			Category:   category.String,
			Type:       txType.String,
			Timestamp:  timestamp.Time,
		}
	}

	return &a, nil
}

// GetAlert retrieves an alert with its transaction.
func (r *SQLRepository) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts a
		LEFT JOIN transactions t ON t.id = a.transaction_id
		WHERE a.id = ?
	`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return alert, err
}

// ListAlerts retrieves alerts newest first, optionally filtered by status
// and queue.
func (r *SQLRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts a
		LEFT JOIN transactions t ON t.id = a.transaction_id
		WHERE 1 = 1
	`
	var args []any

	if filter.Status != "" {
		query += ` AND a.status = ?`
		args = append(args, filter.Status)
	}
	if filter.Queue != "" {
		query += ` AND a.assigned_queue = ?`
		args = append(args, filter.Queue)
	}

	query += ` ORDER BY a.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// UpdateAlertStatus moves an alert between review states.
func (r *SQLRepository) UpdateAlertStatus(ctx context.Context, alertID string, status domain.AlertStatus) error {
	query := `UPDATE alerts SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, time.Now().UTC(), alertID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// GetAlertStats aggregates alert volume for dashboard KPIs. highRiskMin is
// the score at which an alert counts as high risk.
func (r *SQLRepository) GetAlertStats(ctx context.Context, highRiskMin int) (*domain.AlertStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN a.status = 'Pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN a.status = 'Reviewed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN a.status = 'Dismissed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN a.risk_score >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN a.risk_score >= ? THEN t.amount ELSE 0 END), 0)
		FROM alerts a
		LEFT JOIN transactions t ON t.id = a.transaction_id
	`

	var stats domain.AlertStats
	err := r.db.QueryRowContext(ctx, r.rebind(query), highRiskMin, highRiskMin).Scan(
		&stats.Total, &stats.Pending, &stats.Reviewed, &stats.Dismissed,
		&stats.HighRisk, &stats.FraudAmount,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// GetAlertTrend returns the per-day alert series since a point in time.
func (r *SQLRepository) GetAlertTrend(ctx context.Context, since time.Time, highRiskMin int) ([]domain.AlertTrendPoint, error) {
	query := `
		SELECT ` + r.dateExpr("created_at") + ` AS day,
			COUNT(*),
			COALESCE(SUM(CASE WHEN risk_score >= ? THEN 1 ELSE 0 END), 0)
		FROM alerts
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), highRiskMin, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trend []domain.AlertTrendPoint
	for rows.Next() {
		var p domain.AlertTrendPoint
		if err := rows.Scan(&p.Date, &p.Alerts, &p.Fraud); err != nil {
			return nil, err
		}
		trend = append(trend, p)
	}

	return trend, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// dateExpr returns the driver-specific expression extracting YYYY-MM-DD
// from a timestamp column.
func (r *SQLRepository) dateExpr(column string) string {
	if r.driver == "postgres" {
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", column)
	}
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

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
