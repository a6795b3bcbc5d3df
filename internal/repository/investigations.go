package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
)

// SaveCase stores a new investigation case.
func (r *SQLRepository) SaveCase(ctx context.Context, c *domain.Case) error {
	query := `
		INSERT INTO cases (id, alert_id, status, analyst_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.AlertID, c.Status, c.AnalystID, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCase retrieves a case with its notes and originating alert.
func (r *SQLRepository) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	query := `
		SELECT id, alert_id, status, analyst_id, version, created_at, updated_at
		FROM cases
		WHERE id = ?
	`

	c, err := scanCase(r.db.QueryRowContext(ctx, r.rebind(query), caseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	notes, err := r.ListCaseNotes(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Notes = notes

	alert, err := r.GetAlert(ctx, c.AlertID)
	if err == nil {
		c.Alert = alert
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return c, nil
}

// ListCases retrieves all cases newest first.
func (r *SQLRepository) ListCases(ctx context.Context) ([]*domain.Case, error) {
	query := `
		SELECT id, alert_id, status, analyst_id, version, created_at, updated_at
		FROM cases
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// UpdateCase applies a mutation using optimistic versioning. The case's
// Version field is the version the writer read; the stored version is
// bumped on success. A stale version fails with ErrVersionConflict.
func (r *SQLRepository) UpdateCase(ctx context.Context, c *domain.Case) error {
	query := `
		UPDATE cases
		SET status = ?, analyst_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		c.Status, c.AnalystID, c.UpdatedAt, c.ID, c.Version,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.GetCase(ctx, c.ID); errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}

	c.Version++
	return nil
}

// AddCaseNote appends a note. Notes are never updated or deleted.
func (r *SQLRepository) AddCaseNote(ctx context.Context, note *domain.CaseNote) error {
	query := `
		INSERT INTO case_notes (id, case_id, analyst_id, note, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		note.ID, note.CaseID, note.AnalystID, note.Note, note.CreatedAt,
	)
	return err
}

// ListCaseNotes retrieves a case's notes oldest first.
func (r *SQLRepository) ListCaseNotes(ctx context.Context, caseID string) ([]domain.CaseNote, error) {
	query := `
		SELECT id, case_id, analyst_id, note, created_at
		FROM case_notes
		WHERE case_id = ?
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.CaseNote
	for rows.Next() {
		var n domain.CaseNote
		var analystID sql.NullString
		if err := rows.Scan(&n.ID, &n.CaseID, &analystID, &n.Note, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.AnalystID = analystID.String
		notes = append(notes, n)
	}

	return notes, rows.Err()
}

func scanCase(row rowScanner) (*domain.Case, error) {
	var c domain.Case
	var analystID sql.NullString

	err := row.Scan(&c.ID, &c.AlertID, &c.Status, &analystID, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.AnalystID = analystID.String
	return &c, nil
}

// SaveSAR stores a new filing.
func (r *SQLRepository) SaveSAR(ctx context.Context, sar *domain.SAR) error {
	query := `
		INSERT INTO sars (
			id, sar_id, case_id, customer_name, amount, description, status,
			filing_date, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		sar.ID, sar.SARID, sar.CaseID, sar.CustomerName, sar.Amount,
		sar.Description, sar.Status, nullTime(sar.FilingDate),
		sar.Version, sar.CreatedAt, sar.UpdatedAt,
	)
	return err
}

// GetSAR retrieves a filing by internal ID or human-readable SAR ID.
func (r *SQLRepository) GetSAR(ctx context.Context, id string) (*domain.SAR, error) {
	query := `
		SELECT id, sar_id, case_id, customer_name, amount, description, status,
			   filing_date, version, created_at, updated_at
		FROM sars
		WHERE id = ? OR sar_id = ?
	`

	sar, err := scanSAR(r.db.QueryRowContext(ctx, r.rebind(query), id, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return sar, err
}

// ListSARs retrieves filings newest first, optionally filtered by status
// and a search over SAR ID and customer name.
func (r *SQLRepository) ListSARs(ctx context.Context, filter domain.SARFilter) ([]*domain.SAR, error) {
	query := `
		SELECT id, sar_id, case_id, customer_name, amount, description, status,
			   filing_date, version, created_at, updated_at
		FROM sars
		WHERE 1 = 1
	`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		query += ` AND (sar_id LIKE ? OR customer_name LIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY created_at DESC`

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

	var sars []*domain.SAR
	for rows.Next() {
		sar, err := scanSAR(rows)
		if err != nil {
			return nil, err
		}
		sars = append(sars, sar)
	}

	return sars, rows.Err()
}

// UpdateSAR applies a mutation using optimistic versioning, same contract
// as UpdateCase.
func (r *SQLRepository) UpdateSAR(ctx context.Context, sar *domain.SAR) error {
	query := `
		UPDATE sars
		SET customer_name = ?, amount = ?, description = ?, status = ?,
			filing_date = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		sar.CustomerName, sar.Amount, sar.Description, sar.Status,
		nullTime(sar.FilingDate), sar.UpdatedAt, sar.ID, sar.Version,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.GetSAR(ctx, sar.ID); errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}

	sar.Version++
	return nil
}

// GetSARStats summarizes filing counts.
func (r *SQLRepository) GetSARStats(ctx context.Context) (*domain.SARStats, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'Pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'Filed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'Draft' THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM sars
	`

	var stats domain.SARStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.PendingFilings, &stats.SuccessfullyFiled, &stats.Drafts, &stats.Total,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// CountSARs returns the total number of filings ever created. Used for
// sequential SAR ID assignment.
func (r *SQLRepository) CountSARs(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sars`).Scan(&count)
	return count, err
}

func scanSAR(row rowScanner) (*domain.SAR, error) {
	var sar domain.SAR
	var customerName, description sql.NullString
	var filingDate sql.NullTime

	err := row.Scan(
		&sar.ID, &sar.SARID, &sar.CaseID, &customerName, &sar.Amount,
		&description, &sar.Status, &filingDate,
		&sar.Version, &sar.CreatedAt, &sar.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sar.CustomerName = customerName.String
	sar.Description = description.String
	if filingDate.Valid {
		sar.FilingDate = filingDate.Time
	}

	return &sar, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
