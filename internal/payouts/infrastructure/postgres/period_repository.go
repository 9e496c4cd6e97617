package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	payouts "marketplace-payouts/internal/payouts/domain"
)

// PeriodRepository persists payout periods. Transitions are conditional updates.
type PeriodRepository struct {
	db *sql.DB
}

// NewPeriodRepository constructs a repository.
func NewPeriodRepository(db *sql.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

const periodColumns = `id, vendor_id, status, COALESCE(total_vendor_net, 0), week_start, week_end,
	COALESCE(approved_by::text, ''), approved_at, COALESCE(payment_reference, ''), COALESCE(payment_method, ''),
	COALESCE(paid_by::text, ''), paid_at, COALESCE(notes, ''), created_at`

// GetPeriod loads one period.
func (r *PeriodRepository) GetPeriod(ctx context.Context, id string) (*payouts.PayoutPeriod, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+periodColumns+`
FROM payout_periods
WHERE id = $1`, id)
	period, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payouts.NotFound("payout period", id)
	}
	return period, err
}

// ListPeriods lists periods newest first.
func (r *PeriodRepository) ListPeriods(ctx context.Context, filter payouts.PeriodFilter) ([]payouts.PayoutPeriod, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	var (
		where []string
		args  []any
	)
	if filter.VendorID != "" {
		args = append(args, filter.VendorID)
		where = append(where, fmt.Sprintf("vendor_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := "SELECT " + periodColumns + "\nFROM payout_periods"
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPeriods(rows)
}

// ApproveDraft moves a draft period to approved. It reports false when no draft row matched.
func (r *PeriodRepository) ApproveDraft(ctx context.Context, id, approvedBy string, approvedAt time.Time, notes *string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errNilDB
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE payout_periods
SET status = 'approved', approved_by = $1, approved_at = $2, notes = COALESCE($3, notes)
WHERE id = $4 AND status = 'draft'`, approvedBy, approvedAt, nullableString(notes), id)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

// CompleteApproved moves an approved period to completed.
func (r *PeriodRepository) CompleteApproved(ctx context.Context, id, paidBy string, paidAt time.Time, reference, method string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errNilDB
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE payout_periods
SET status = 'completed', paid_by = $1, paid_at = $2, payment_reference = $3, payment_method = $4
WHERE id = $5 AND status = 'approved'`, paidBy, paidAt, reference, method, id)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

// DeleteDraft locks the period, unlinks its items and deletes it in one transaction.
func (r *PeriodRepository) DeleteDraft(ctx context.Context, id string) (bool, payouts.PeriodStatus, error) {
	if r == nil || r.db == nil {
		return false, "", errNilDB
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, "", err
	}
	var status string
	err = tx.QueryRowContext(ctx, `
SELECT status FROM payout_periods WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return false, "", payouts.NotFound("payout period", id)
		}
		return false, "", err
	}
	if payouts.PeriodStatus(status) != payouts.PeriodStatusDraft {
		_ = tx.Rollback()
		return false, payouts.PeriodStatus(status), nil
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE order_items SET payout_period_id = NULL WHERE payout_period_id = $1`, id); err != nil {
		_ = tx.Rollback()
		return false, "", err
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM payout_periods WHERE id = $1 AND status = 'draft'`, id); err != nil {
		_ = tx.Rollback()
		return false, "", err
	}
	if err := tx.Commit(); err != nil {
		return false, "", err
	}
	return true, "", nil
}

func affectedOne(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func scanPeriods(rows *sql.Rows) ([]payouts.PayoutPeriod, error) {
	var result []payouts.PayoutPeriod
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *period)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanPeriod(row rowScanner) (*payouts.PayoutPeriod, error) {
	var (
		period     payouts.PayoutPeriod
		status     string
		weekStart  sql.NullTime
		weekEnd    sql.NullTime
		approvedAt sql.NullTime
		paidAt     sql.NullTime
		createdAt  sql.NullTime
	)
	if err := row.Scan(
		&period.ID, &period.VendorID, &status, &period.TotalVendorNet, &weekStart, &weekEnd,
		&period.ApprovedBy, &approvedAt, &period.PaymentReference, &period.PaymentMethod,
		&period.PaidBy, &paidAt, &period.Notes, &createdAt,
	); err != nil {
		return nil, err
	}
	period.Status = payouts.PeriodStatus(status)
	period.WeekStart = utcOrZero(weekStart)
	period.WeekEnd = utcOrZero(weekEnd)
	period.ApprovedAt = utcOrZero(approvedAt)
	period.PaidAt = utcOrZero(paidAt)
	period.CreatedAt = utcOrZero(createdAt)
	return &period, nil
}

func utcOrZero(value sql.NullTime) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return value.Time.UTC()
}
