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

// SaveModelResult upserts a model's offline performance snapshot.
func (r *SQLRepository) SaveModelResult(ctx context.Context, result *domain.ModelResult) error {
	query := `
		INSERT INTO model_results (
			model_name, accuracy, f1_score, precision_score, recall, auc_roc, trained_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(model_name) DO UPDATE SET
			accuracy = excluded.accuracy,
			f1_score = excluded.f1_score,
			precision_score = excluded.precision_score,
			recall = excluded.recall,
			auc_roc = excluded.auc_roc,
			trained_at = excluded.trained_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		result.ModelName, result.Accuracy, result.F1Score,
		result.Precision, result.Recall, result.AUCROC,
		nullTime(result.TrainedAt),
	)
	return err
}

// ListModelResults retrieves all model performance snapshots.
func (r *SQLRepository) ListModelResults(ctx context.Context) ([]*domain.ModelResult, error) {
	query := `
		SELECT model_name, accuracy, f1_score, precision_score, recall, auc_roc, trained_at
		FROM model_results
		ORDER BY model_name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ModelResult
	for rows.Next() {
		var m domain.ModelResult
		var trainedAt sql.NullTime
		if err := rows.Scan(
			&m.ModelName, &m.Accuracy, &m.F1Score,
			&m.Precision, &m.Recall, &m.AUCROC, &trainedAt,
		); err != nil {
			return nil, err
		}
		if trainedAt.Valid {
			m.TrainedAt = trainedAt.Time
		}
		results = append(results, &m)
	}

	return results, rows.Err()
}

// SaveScoringConfig appends a new config version. The stored version is
// always the current maximum plus one; the caller's Version field is
// updated to the assigned version.
func (r *SQLRepository) SaveScoringConfig(ctx context.Context, cfg *domain.ScoringConfig) error {
	thresholds, err := json.Marshal(cfg.RiskThresholds)
	if err != nil {
		return fmt.Errorf("failed to encode risk thresholds: %w", err)
	}

	var maxVersion sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(version) FROM scoring_configs`).Scan(&maxVersion); err != nil {
		return err
	}
	cfg.Version = int(maxVersion.Int64) + 1
	cfg.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO scoring_configs (
			version, mode, model_name, rule_weight, model_weight,
			alert_threshold, risk_thresholds, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		cfg.Version, cfg.Mode, cfg.ModelName,
		cfg.RuleWeight, cfg.ModelWeight, cfg.AlertThreshold,
		string(thresholds), cfg.UpdatedAt,
	)
	return err
}

// GetScoringConfig retrieves the latest config version.
func (r *SQLRepository) GetScoringConfig(ctx context.Context) (*domain.ScoringConfig, error) {
	query := `
		SELECT version, mode, model_name, rule_weight, model_weight,
			   alert_threshold, risk_thresholds, updated_at
		FROM scoring_configs
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.ScoringConfig
	var thresholds string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&cfg.Version, &cfg.Mode, &cfg.ModelName,
		&cfg.RuleWeight, &cfg.ModelWeight, &cfg.AlertThreshold,
		&thresholds, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(thresholds), &cfg.RiskThresholds); err != nil {
		return nil, fmt.Errorf("failed to parse risk thresholds: %w", err)
	}

	return &cfg, nil
}
