package postgres

import (
	"context"
	"database/sql"
	"time"

	payouts "marketplace-payouts/internal/payouts/domain"
)

const weekStartLayout = "2006-01-02"

// Calculator invokes the calculation routines installed in the database.
type Calculator struct {
	db *sql.DB
}

// NewCalculator constructs a Calculator.
func NewCalculator(db *sql.DB) *Calculator {
	return &Calculator{db: db}
}

// CalculateWeeklyPayout calls calculate_weekly_payout and returns the periods it created.
func (c *Calculator) CalculateWeeklyPayout(ctx context.Context, vendorID string, weekStarts []time.Time) ([]payouts.PayoutPeriod, error) {
	if c == nil || c.db == nil {
		return nil, errNilDB
	}
	days := make([]string, 0, len(weekStarts))
	for _, day := range weekStarts {
		days = append(days, day.UTC().Format(weekStartLayout))
	}
	rows, err := c.db.QueryContext(ctx, `
SELECT `+periodColumns+`
FROM calculate_weekly_payout($1::uuid, $2::text[])`, vendorID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPeriods(rows)
}

// ProcessBulkPayouts calls process_bulk_payouts. A nil vendor list lets the routine pick all vendors.
func (c *Calculator) ProcessBulkPayouts(ctx context.Context, weekStart time.Time, vendorIDs []string) ([]payouts.BulkPayoutResult, error) {
	if c == nil || c.db == nil {
		return nil, errNilDB
	}
	var ids any
	if len(vendorIDs) > 0 {
		ids = vendorIDs
	}
	rows, err := c.db.QueryContext(ctx, `
SELECT vendor_id::text, status
FROM process_bulk_payouts($1::date, $2::text[])`, weekStart.UTC().Format(weekStartLayout), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payouts.BulkPayoutResult
	for rows.Next() {
		var row payouts.BulkPayoutResult
		if err := rows.Scan(&row.VendorID, &row.Status); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
