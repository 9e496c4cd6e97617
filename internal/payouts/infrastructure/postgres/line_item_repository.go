package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	payouts "marketplace-payouts/internal/payouts/domain"
)

var errNilDB = errors.New("payouts repo: nil db")

// LineItemRepository reads and flags order line items.
type LineItemRepository struct {
	db *sql.DB
}

// NewLineItemRepository constructs a repository.
func NewLineItemRepository(db *sql.DB) *LineItemRepository {
	return &LineItemRepository{db: db}
}

const lineItemColumns = `oi.id, oi.order_id, oi.vendor_id, oi.quantity, oi.price, oi.fulfillment_status,
	oi.finance_payout_approved, oi.super_admin_payout_approved, oi.payout_hold,
	COALESCE(oi.payout_hold_reason, ''), oi.payout_period_id`

// ListLineItems returns items matching filter ordered by id.
func (r *LineItemRepository) ListLineItems(ctx context.Context, filter payouts.LineItemFilter) ([]payouts.OrderLineItem, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	where, args := lineItemWhere(filter)
	query := `
SELECT ` + lineItemColumns + `
FROM order_items oi
JOIN orders o ON o.id = oi.order_id`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY oi.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payouts.OrderLineItem
	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func lineItemWhere(filter payouts.LineItemFilter) ([]string, []any) {
	var where []string
	var args []any
	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(filter.VendorIDs) > 0 {
		where = append(where, "oi.vendor_id::text = ANY("+next(filter.VendorIDs)+"::text[])")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		where = append(where, "oi.fulfillment_status = ANY("+next(statuses)+"::text[])")
	}
	if filter.PayoutPeriodID != "" {
		where = append(where, "oi.payout_period_id = "+next(filter.PayoutPeriodID))
	}
	if !filter.OrderedFrom.IsZero() {
		where = append(where, "o.created_at >= "+next(filter.OrderedFrom))
	}
	if !filter.OrderedTo.IsZero() {
		where = append(where, "o.created_at < "+next(filter.OrderedTo))
	}
	return where, args
}

// GetLineItem loads one line item.
func (r *LineItemRepository) GetLineItem(ctx context.Context, id string) (*payouts.OrderLineItem, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+lineItemColumns+`
FROM order_items oi
WHERE oi.id = $1`, id)
	item, err := scanLineItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payouts.NotFound("order item", id)
	}
	return item, err
}

// SetHold sets or clears the payout hold.
func (r *LineItemRepository) SetHold(ctx context.Context, id string, hold bool, reason string) error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	var reasonArg any
	if hold {
		reasonArg = reason
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE order_items
SET payout_hold = $1, payout_hold_reason = $2
WHERE id = $3`, hold, reasonArg, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return payouts.NotFound("order item", id)
	}
	return nil
}

// SetApproval flags delivered, unheld items that are not settled in a completed period.
func (r *LineItemRepository) SetApproval(ctx context.Context, ids []string, field payouts.ApprovalField) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	var column string
	switch field {
	case payouts.ApprovalFinance:
		column = "finance_payout_approved"
	case payouts.ApprovalSuperAdmin:
		column = "super_admin_payout_approved"
	default:
		return nil, fmt.Errorf("payouts repo: unknown approval field %q", field)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
UPDATE order_items oi
SET `+column+` = TRUE
WHERE oi.id::text = ANY($1::text[])
	AND oi.fulfillment_status = 'delivered'
	AND oi.payout_hold = FALSE
	AND NOT EXISTS (
		SELECT 1 FROM payout_periods pp
		WHERE pp.id = oi.payout_period_id AND pp.status = 'completed'
	)
RETURNING oi.id::text`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updated []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLineItem(row rowScanner) (*payouts.OrderLineItem, error) {
	var (
		item     payouts.OrderLineItem
		status   string
		periodID sql.NullString
	)
	if err := row.Scan(
		&item.ID, &item.OrderID, &item.VendorID, &item.Quantity, &item.UnitPrice, &status,
		&item.FinanceApproved, &item.SuperAdminApproved, &item.PayoutHold,
		&item.PayoutHoldReason, &periodID,
	); err != nil {
		return nil, err
	}
	item.FulfillmentStatus = payouts.FulfillmentStatus(status)
	if periodID.Valid {
		id := periodID.String
		item.PayoutPeriodID = &id
	}
	return &item, nil
}
