package payouts

import "time"

// LineItemFilter selects order line items for aggregation.
// Zero values mean "no constraint".
type LineItemFilter struct {
	VendorIDs      []string
	OrderedFrom    time.Time
	OrderedTo      time.Time
	Statuses       []FulfillmentStatus
	PayoutPeriodID string
}

// DeliveredOnly returns a copy restricted to delivered items.
func (f LineItemFilter) DeliveredOnly() LineItemFilter {
	f.Statuses = []FulfillmentStatus{FulfillmentDelivered}
	return f
}

// Matches reports whether an item (and its order) satisfies the filter.
func (f LineItemFilter) Matches(item OrderLineItem, order *Order) bool {
	if len(f.VendorIDs) > 0 && !containsString(f.VendorIDs, item.VendorID) {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, status := range f.Statuses {
			if item.FulfillmentStatus == status {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.PayoutPeriodID != "" {
		if item.PayoutPeriodID == nil || *item.PayoutPeriodID != f.PayoutPeriodID {
			return false
		}
	}
	if !f.OrderedFrom.IsZero() || !f.OrderedTo.IsZero() {
		if order == nil {
			return false
		}
		if !f.OrderedFrom.IsZero() && order.CreatedAt.Before(f.OrderedFrom) {
			return false
		}
		if !f.OrderedTo.IsZero() && !order.CreatedAt.Before(f.OrderedTo) {
			return false
		}
	}
	return true
}

// PeriodFilter selects payout periods.
type PeriodFilter struct {
	VendorID string
	Status   PeriodStatus
	Limit    int
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
