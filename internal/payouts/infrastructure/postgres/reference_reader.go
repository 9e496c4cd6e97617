package postgres

import (
	"context"
	"database/sql"
	"errors"

	payouts "marketplace-payouts/internal/payouts/domain"
)

// ReferenceReader loads orders, vendors and payment info owned by other subsystems.
type ReferenceReader struct {
	db *sql.DB
}

// NewReferenceReader constructs a reader.
func NewReferenceReader(db *sql.DB) *ReferenceReader {
	return &ReferenceReader{db: db}
}

// OrdersByIDs returns orders found among ids.
func (r *ReferenceReader) OrdersByIDs(ctx context.Context, ids []string) (map[string]payouts.Order, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	result := make(map[string]payouts.Order, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, created_at, COALESCE(payment_method, '')
FROM orders
WHERE id::text = ANY($1::text[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var order payouts.Order
		if err := rows.Scan(&order.ID, &order.CreatedAt, &order.PaymentMethod); err != nil {
			return nil, err
		}
		order.CreatedAt = order.CreatedAt.UTC()
		result[order.ID] = order
	}
	return result, rows.Err()
}

// VendorsByIDs returns vendors found among ids.
func (r *ReferenceReader) VendorsByIDs(ctx context.Context, ids []string) (map[string]payouts.Vendor, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	result := make(map[string]payouts.Vendor, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, COALESCE(business_name, ''), commission_rate, COALESCE(email, '')
FROM vendors
WHERE id::text = ANY($1::text[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		vendor, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		result[vendor.ID] = *vendor
	}
	return result, rows.Err()
}

// GetVendor loads one vendor.
func (r *ReferenceReader) GetVendor(ctx context.Context, id string) (*payouts.Vendor, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, COALESCE(business_name, ''), commission_rate, COALESCE(email, '')
FROM vendors
WHERE id = $1`, id)
	vendor, err := scanVendor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payouts.NotFound("vendor", id)
	}
	return vendor, err
}

// PaymentInfoByVendorIDs returns payment info found among vendor ids.
func (r *ReferenceReader) PaymentInfoByVendorIDs(ctx context.Context, ids []string) (map[string]payouts.PaymentInfo, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	result := make(map[string]payouts.PaymentInfo, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT vendor_id, COALESCE(payment_method, ''), COALESCE(bank_name, ''), COALESCE(account_name, ''),
	COALESCE(account_number, ''), COALESCE(mobile_provider, ''), COALESCE(mobile_number, '')
FROM vendor_payment_info
WHERE vendor_id::text = ANY($1::text[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			info   payouts.PaymentInfo
			method string
		)
		if err := rows.Scan(&info.VendorID, &method, &info.BankName, &info.AccountName,
			&info.AccountNumber, &info.MobileProvider, &info.MobileNumber); err != nil {
			return nil, err
		}
		info.Method = payouts.PaymentMethodKind(method)
		result[info.VendorID] = info
	}
	return result, rows.Err()
}

func scanVendor(row rowScanner) (*payouts.Vendor, error) {
	var (
		vendor payouts.Vendor
		rate   sql.NullFloat64
	)
	if err := row.Scan(&vendor.ID, &vendor.BusinessName, &rate, &vendor.Email); err != nil {
		return nil, err
	}
	if rate.Valid {
		value := rate.Float64
		vendor.CommissionRate = &value
	}
	return &vendor, nil
}
