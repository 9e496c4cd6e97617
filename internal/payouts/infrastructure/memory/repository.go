package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	payouts "marketplace-payouts/internal/payouts/domain"
)

// Store is an in-memory implementation of every payout repository port.
// It mirrors the conditional semantics of the Postgres adapter.
type Store struct {
	mu           sync.RWMutex
	items        map[string]payouts.OrderLineItem
	orders       map[string]payouts.Order
	vendors      map[string]payouts.Vendor
	paymentInfos map[string]payouts.PaymentInfo
	periods      map[string]payouts.PayoutPeriod

	// CalculateErr and BulkErr make the calculator routines fail.
	CalculateErr error
	BulkErr      error

	// Calls counts repository invocations, for asserting that guarded
	// operations never reached storage.
	Calls int
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		items:        make(map[string]payouts.OrderLineItem),
		orders:       make(map[string]payouts.Order),
		vendors:      make(map[string]payouts.Vendor),
		paymentInfos: make(map[string]payouts.PaymentInfo),
		periods:      make(map[string]payouts.PayoutPeriod),
	}
}

// PutItem seeds a line item.
func (s *Store) PutItem(item payouts.OrderLineItem) {
	s.mu.Lock()
	s.items[item.ID] = cloneItem(item)
	s.mu.Unlock()
}

// PutOrder seeds an order.
func (s *Store) PutOrder(order payouts.Order) {
	s.mu.Lock()
	s.orders[order.ID] = order
	s.mu.Unlock()
}

// PutVendor seeds a vendor.
func (s *Store) PutVendor(vendor payouts.Vendor) {
	s.mu.Lock()
	s.vendors[vendor.ID] = vendor
	s.mu.Unlock()
}

// PutPaymentInfo seeds vendor payment info.
func (s *Store) PutPaymentInfo(info payouts.PaymentInfo) {
	s.mu.Lock()
	s.paymentInfos[info.VendorID] = info
	s.mu.Unlock()
}

// PutPeriod seeds a payout period.
func (s *Store) PutPeriod(period payouts.PayoutPeriod) {
	s.mu.Lock()
	s.periods[period.ID] = period
	s.mu.Unlock()
}

// Item returns a stored line item for assertions.
func (s *Store) Item(id string) (payouts.OrderLineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return cloneItem(item), ok
}

// Period returns a stored period for assertions.
func (s *Store) Period(id string) (payouts.PayoutPeriod, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	period, ok := s.periods[id]
	return period, ok
}

func (s *Store) touch() {
	s.Calls++
}

// ListLineItems returns items matching filter ordered by id.
func (s *Store) ListLineItems(_ context.Context, filter payouts.LineItemFilter) ([]payouts.OrderLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	var result []payouts.OrderLineItem
	for _, item := range s.items {
		var order *payouts.Order
		if o, ok := s.orders[item.OrderID]; ok {
			order = &o
		}
		if filter.Matches(item, order) {
			result = append(result, cloneItem(item))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetLineItem loads one line item.
func (s *Store) GetLineItem(_ context.Context, id string) (*payouts.OrderLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	item, ok := s.items[id]
	if !ok {
		return nil, payouts.NotFound("order item", id)
	}
	item = cloneItem(item)
	return &item, nil
}

// SetHold sets or clears the payout hold on an item.
func (s *Store) SetHold(_ context.Context, id string, hold bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	item, ok := s.items[id]
	if !ok {
		return payouts.NotFound("order item", id)
	}
	item.PayoutHold = hold
	item.PayoutHoldReason = reason
	s.items[id] = item
	return nil
}

// SetApproval flags delivered, unheld items not settled in a completed period.
func (s *Store) SetApproval(_ context.Context, ids []string, field payouts.ApprovalField) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	var updated []string
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok || item.FulfillmentStatus != payouts.FulfillmentDelivered || item.PayoutHold {
			continue
		}
		if item.PayoutPeriodID != nil {
			if period, ok := s.periods[*item.PayoutPeriodID]; ok && period.Status == payouts.PeriodStatusCompleted {
				continue
			}
		}
		switch field {
		case payouts.ApprovalFinance:
			item.FinanceApproved = true
		case payouts.ApprovalSuperAdmin:
			item.SuperAdminApproved = true
		default:
			continue
		}
		s.items[id] = item
		updated = append(updated, id)
	}
	return updated, nil
}

// OrdersByIDs returns the orders found among ids.
func (s *Store) OrdersByIDs(_ context.Context, ids []string) (map[string]payouts.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]payouts.Order, len(ids))
	for _, id := range ids {
		if order, ok := s.orders[id]; ok {
			result[id] = order
		}
	}
	return result, nil
}

// VendorsByIDs returns the vendors found among ids.
func (s *Store) VendorsByIDs(_ context.Context, ids []string) (map[string]payouts.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]payouts.Vendor, len(ids))
	for _, id := range ids {
		if vendor, ok := s.vendors[id]; ok {
			result[id] = vendor
		}
	}
	return result, nil
}

// GetVendor loads one vendor.
func (s *Store) GetVendor(_ context.Context, id string) (*payouts.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	vendor, ok := s.vendors[id]
	if !ok {
		return nil, payouts.NotFound("vendor", id)
	}
	return &vendor, nil
}

// PaymentInfoByVendorIDs returns payment info found among vendor ids.
func (s *Store) PaymentInfoByVendorIDs(_ context.Context, ids []string) (map[string]payouts.PaymentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]payouts.PaymentInfo, len(ids))
	for _, id := range ids {
		if info, ok := s.paymentInfos[id]; ok {
			result[id] = info
		}
	}
	return result, nil
}

// GetPeriod loads one payout period.
func (s *Store) GetPeriod(_ context.Context, id string) (*payouts.PayoutPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	period, ok := s.periods[id]
	if !ok {
		return nil, payouts.NotFound("payout period", id)
	}
	return &period, nil
}

// ListPeriods returns periods matching filter, newest first.
func (s *Store) ListPeriods(_ context.Context, filter payouts.PeriodFilter) ([]payouts.PayoutPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	var result []payouts.PayoutPeriod
	for _, period := range s.periods {
		if filter.VendorID != "" && period.VendorID != filter.VendorID {
			continue
		}
		if filter.Status != "" && period.Status != filter.Status {
			continue
		}
		result = append(result, period)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// ApproveDraft moves a draft period to approved.
func (s *Store) ApproveDraft(_ context.Context, id, approvedBy string, approvedAt time.Time, notes *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	period, ok := s.periods[id]
	if !ok || period.Status != payouts.PeriodStatusDraft {
		return false, nil
	}
	period.Status = payouts.PeriodStatusApproved
	period.ApprovedBy = approvedBy
	period.ApprovedAt = approvedAt
	if notes != nil {
		period.Notes = *notes
	}
	s.periods[id] = period
	return true, nil
}

// CompleteApproved moves an approved period to completed.
func (s *Store) CompleteApproved(_ context.Context, id, paidBy string, paidAt time.Time, reference, method string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	period, ok := s.periods[id]
	if !ok || period.Status != payouts.PeriodStatusApproved {
		return false, nil
	}
	period.Status = payouts.PeriodStatusCompleted
	period.PaidBy = paidBy
	period.PaidAt = paidAt
	period.PaymentReference = reference
	period.PaymentMethod = method
	s.periods[id] = period
	return true, nil
}

// DeleteDraft unlinks the period's items and deletes it when still a draft.
func (s *Store) DeleteDraft(_ context.Context, id string) (bool, payouts.PeriodStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	period, ok := s.periods[id]
	if !ok {
		return false, "", payouts.NotFound("payout period", id)
	}
	if period.Status != payouts.PeriodStatusDraft {
		return false, period.Status, nil
	}
	for itemID, item := range s.items {
		if item.PayoutPeriodID != nil && *item.PayoutPeriodID == id {
			item.PayoutPeriodID = nil
			s.items[itemID] = item
		}
	}
	delete(s.periods, id)
	return true, "", nil
}

// CalculateWeeklyPayout creates one draft period per week from the vendor's
// delivered, unheld, fully approved items not yet linked to a period.
func (s *Store) CalculateWeeklyPayout(_ context.Context, vendorID string, weekStarts []time.Time) ([]payouts.PayoutPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.CalculateErr != nil {
		return nil, s.CalculateErr
	}
	var created []payouts.PayoutPeriod
	for _, weekStart := range weekStarts {
		if period, ok := s.createPeriodLocked(vendorID, weekStart); ok {
			created = append(created, period)
		}
	}
	return created, nil
}

// ProcessBulkPayouts runs the weekly calculation for the given vendors, or all vendors when empty.
func (s *Store) ProcessBulkPayouts(_ context.Context, weekStart time.Time, vendorIDs []string) ([]payouts.BulkPayoutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.BulkErr != nil {
		return nil, s.BulkErr
	}
	if len(vendorIDs) == 0 {
		for id := range s.vendors {
			vendorIDs = append(vendorIDs, id)
		}
		sort.Strings(vendorIDs)
	}
	results := make([]payouts.BulkPayoutResult, 0, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		status := "skipped"
		if _, ok := s.createPeriodLocked(vendorID, weekStart); ok {
			status = payouts.BulkStatusProcessed
		}
		results = append(results, payouts.BulkPayoutResult{VendorID: vendorID, Status: status})
	}
	return results, nil
}

func (s *Store) createPeriodLocked(vendorID string, weekStart time.Time) (payouts.PayoutPeriod, bool) {
	weekEnd := weekStart.AddDate(0, 0, 7)
	rate := decimal.NewFromFloat(payouts.NormalizeCommissionRate(s.vendors[vendorID].CommissionRate))
	total := decimal.Zero
	var linked []string
	for id, item := range s.items {
		if item.VendorID != vendorID || item.PayoutPeriodID != nil || item.PayoutHold {
			continue
		}
		if item.FulfillmentStatus != payouts.FulfillmentDelivered || !item.FinanceApproved || !item.SuperAdminApproved {
			continue
		}
		order, ok := s.orders[item.OrderID]
		if !ok || order.CreatedAt.Before(weekStart) || !order.CreatedAt.Before(weekEnd) {
			continue
		}
		line := decimal.NewFromInt(int64(item.Quantity)).Mul(decimal.NewFromFloat(item.UnitPrice))
		total = total.Add(line.Sub(line.Mul(rate)))
		linked = append(linked, id)
	}
	if len(linked) == 0 {
		return payouts.PayoutPeriod{}, false
	}
	period := payouts.PayoutPeriod{
		ID:             uuid.NewString(),
		VendorID:       vendorID,
		Status:         payouts.PeriodStatusDraft,
		TotalVendorNet: total.InexactFloat64(),
		WeekStart:      weekStart,
		WeekEnd:        weekEnd,
		CreatedAt:      time.Now().UTC(),
	}
	s.periods[period.ID] = period
	for _, id := range linked {
		item := s.items[id]
		periodID := period.ID
		item.PayoutPeriodID = &periodID
		s.items[id] = item
	}
	return period, true
}

func cloneItem(item payouts.OrderLineItem) payouts.OrderLineItem {
	if item.PayoutPeriodID != nil {
		id := *item.PayoutPeriodID
		item.PayoutPeriodID = &id
	}
	return item
}
