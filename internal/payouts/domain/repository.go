package payouts

import (
	"context"
	"time"
)

// LineItemRepository reads and conditionally writes settlement fields on order items.
type LineItemRepository interface {
	ListLineItems(ctx context.Context, filter LineItemFilter) ([]OrderLineItem, error)
	GetLineItem(ctx context.Context, id string) (*OrderLineItem, error)
	SetHold(ctx context.Context, id string, hold bool, reason string) error
	// SetApproval flags eligible items and returns the ids actually updated.
	SetApproval(ctx context.Context, ids []string, field ApprovalField) ([]string, error)
}

// ApprovalField selects which side of the dual approval is being granted.
type ApprovalField string

const (
	ApprovalFinance    ApprovalField = "finance"
	ApprovalSuperAdmin ApprovalField = "super_admin"
)

// ReferenceReader loads read-only orders, vendors and payment info.
type ReferenceReader interface {
	OrdersByIDs(ctx context.Context, ids []string) (map[string]Order, error)
	VendorsByIDs(ctx context.Context, ids []string) (map[string]Vendor, error)
	GetVendor(ctx context.Context, id string) (*Vendor, error)
	PaymentInfoByVendorIDs(ctx context.Context, ids []string) (map[string]PaymentInfo, error)
}

// PeriodRepository persists payout periods. Transition methods are conditional:
// they only update rows in the expected status and report whether a row changed.
type PeriodRepository interface {
	GetPeriod(ctx context.Context, id string) (*PayoutPeriod, error)
	ListPeriods(ctx context.Context, filter PeriodFilter) ([]PayoutPeriod, error)
	ApproveDraft(ctx context.Context, id, approvedBy string, approvedAt time.Time, notes *string) (bool, error)
	CompleteApproved(ctx context.Context, id, paidBy string, paidAt time.Time, reference, method string) (bool, error)
	// DeleteDraft unlinks line items and removes the period in one unit.
	// It returns the status found when the period is not a draft.
	DeleteDraft(ctx context.Context, id string) (deleted bool, current PeriodStatus, err error)
}

// Calculator invokes the external calculation routines.
type Calculator interface {
	CalculateWeeklyPayout(ctx context.Context, vendorID string, weekStarts []time.Time) ([]PayoutPeriod, error)
	ProcessBulkPayouts(ctx context.Context, weekStart time.Time, vendorIDs []string) ([]BulkPayoutResult, error)
}
