package payouts

import "time"

// FulfillmentStatus is the order line item fulfillment state.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentPaid      FulfillmentStatus = "paid"
	FulfillmentShipped   FulfillmentStatus = "shipped"
	FulfillmentDelivered FulfillmentStatus = "delivered"
	FulfillmentCancelled FulfillmentStatus = "cancelled"
)

// PeriodStatus is the payout period lifecycle state.
type PeriodStatus string

const (
	PeriodStatusDraft     PeriodStatus = "draft"
	PeriodStatusApproved  PeriodStatus = "approved"
	PeriodStatusCompleted PeriodStatus = "completed"
)

// DefaultHoldReason is stored when an item is held without a reason.
const DefaultHoldReason = "Held by admin"

// OrderLineItem is an order line owned by the order subsystem.
type OrderLineItem struct {
	ID                 string            `json:"id"`
	OrderID            string            `json:"order_id"`
	VendorID           string            `json:"vendor_id"`
	Quantity           int               `json:"quantity"`
	UnitPrice          float64           `json:"unit_price"`
	FulfillmentStatus  FulfillmentStatus `json:"fulfillment_status"`
	FinanceApproved    bool              `json:"finance_payout_approved"`
	SuperAdminApproved bool              `json:"super_admin_payout_approved"`
	PayoutHold         bool              `json:"payout_hold"`
	PayoutHoldReason   string            `json:"payout_hold_reason,omitempty"`
	PayoutPeriodID     *string           `json:"payout_period_id,omitempty"`
}

// Order is the read-only order header used for period bucketing.
type Order struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	PaymentMethod string    `json:"payment_method"`
}

// Vendor is the read-only vendor reference.
type Vendor struct {
	ID             string   `json:"id"`
	BusinessName   string   `json:"business_name"`
	CommissionRate *float64 `json:"commission_rate,omitempty"`
	Email          string   `json:"email,omitempty"`
}

// PaymentMethodKind identifies how a vendor is paid.
type PaymentMethodKind string

const (
	PaymentMethodBank        PaymentMethodKind = "bank"
	PaymentMethodMobileMoney PaymentMethodKind = "mobile_money"
)

// PaymentInfo holds bank or mobile-money details for a vendor.
type PaymentInfo struct {
	VendorID       string            `json:"vendor_id"`
	Method         PaymentMethodKind `json:"method"`
	BankName       string            `json:"bank_name,omitempty"`
	AccountName    string            `json:"account_name,omitempty"`
	AccountNumber  string            `json:"account_number,omitempty"`
	MobileProvider string            `json:"mobile_provider,omitempty"`
	MobileNumber   string            `json:"mobile_number,omitempty"`
}

// PayoutPeriod is one vendor settlement batch.
type PayoutPeriod struct {
	ID               string       `json:"id"`
	VendorID         string       `json:"vendor_id"`
	Status           PeriodStatus `json:"status"`
	TotalVendorNet   float64      `json:"total_vendor_net"`
	WeekStart        time.Time    `json:"week_start,omitempty"`
	WeekEnd          time.Time    `json:"week_end,omitempty"`
	ApprovedBy       string       `json:"approved_by,omitempty"`
	ApprovedAt       time.Time    `json:"approved_at,omitempty"`
	PaymentReference string       `json:"payment_reference,omitempty"`
	PaymentMethod    string       `json:"payment_method,omitempty"`
	PaidBy           string       `json:"paid_by,omitempty"`
	PaidAt           time.Time    `json:"paid_at,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	CreatedAt        time.Time    `json:"created_at,omitempty"`
}

// BulkPayoutResult is one row returned by the bulk routine.
type BulkPayoutResult struct {
	VendorID string `json:"vendor_id"`
	Status   string `json:"status"`
}

// BulkStatusProcessed marks a vendor the bulk routine generated a period for.
const BulkStatusProcessed = "processed"
