package application

import (
	"context"
	"time"

	"marketplace-payouts/internal/auth"
	payouts "marketplace-payouts/internal/payouts/domain"
)

// ListVendorPayouts aggregates line items into the per-vendor settlement view.
// Without explicit statuses only delivered items are read.
func (s *PayoutService) ListVendorPayouts(ctx context.Context, filter payouts.LineItemFilter) (aggregates []payouts.VendorPayoutAggregate, err error) {
	defer observe("list_vendor_payouts", time.Now(), &err)

	if _, err = auth.Require(ctx, auth.PayoutOperators...); err != nil {
		return nil, err
	}
	if len(filter.Statuses) == 0 {
		filter = filter.DeliveredOnly()
	}

	items, err := s.items.ListLineItems(ctx, filter)
	if err != nil {
		err = payouts.Downstream("list order items", err)
		return nil, err
	}
	input, err := s.join(ctx, items)
	if err != nil {
		return nil, err
	}
	return payouts.AggregateVendorPayouts(input), nil
}

// GetPayoutPeriod loads one payout period.
func (s *PayoutService) GetPayoutPeriod(ctx context.Context, periodID string) (period *payouts.PayoutPeriod, err error) {
	defer observe("get_payout_period", time.Now(), &err)

	if _, err = auth.Require(ctx, auth.PayoutOperators...); err != nil {
		return nil, err
	}
	verr := &payouts.ValidationError{}
	periodID = checkUUID(verr, "payout_id", periodID)
	if err = validationErr(verr); err != nil {
		return nil, err
	}
	period, err = s.periods.GetPeriod(ctx, periodID)
	if err != nil {
		err = payouts.Downstream("load payout period", err)
		return nil, err
	}
	return period, nil
}

// ListPayoutPeriods lists periods, newest first.
func (s *PayoutService) ListPayoutPeriods(ctx context.Context, filter payouts.PeriodFilter) (periods []payouts.PayoutPeriod, err error) {
	defer observe("list_payout_periods", time.Now(), &err)

	if _, err = auth.Require(ctx, auth.PayoutOperators...); err != nil {
		return nil, err
	}
	verr := &payouts.ValidationError{}
	if filter.VendorID != "" {
		filter.VendorID = checkUUID(verr, "vendor_id", filter.VendorID)
	}
	switch filter.Status {
	case "", payouts.PeriodStatusDraft, payouts.PeriodStatusApproved, payouts.PeriodStatusCompleted:
	default:
		verr.Add("status", "must be one of draft, approved, completed")
	}
	if filter.Limit < 0 {
		verr.Add("limit", "must not be negative")
	}
	if err = validationErr(verr); err != nil {
		return nil, err
	}

	periods, err = s.periods.ListPeriods(ctx, filter)
	if err != nil {
		err = payouts.Downstream("list payout periods", err)
		return nil, err
	}
	if periods == nil {
		periods = []payouts.PayoutPeriod{}
	}
	return periods, nil
}

// Remittance is everything needed to render a remittance advice for one period.
type Remittance struct {
	Period      payouts.PayoutPeriod
	Vendor      payouts.Vendor
	PaymentInfo *payouts.PaymentInfo
	Items       []payouts.OrderLineItem
	Orders      map[string]payouts.Order
	Summary     payouts.VendorPayoutAggregate
}

// GetRemittance gathers a period with its vendor, payment info and linked items.
func (s *PayoutService) GetRemittance(ctx context.Context, periodID string) (remittance *Remittance, err error) {
	defer observe("get_remittance", time.Now(), &err)

	if _, err = auth.Require(ctx, auth.PayoutOperators...); err != nil {
		return nil, err
	}
	verr := &payouts.ValidationError{}
	periodID = checkUUID(verr, "payout_id", periodID)
	if err = validationErr(verr); err != nil {
		return nil, err
	}

	period, err := s.periods.GetPeriod(ctx, periodID)
	if err != nil {
		err = payouts.Downstream("load payout period", err)
		return nil, err
	}
	vendor, err := s.refs.GetVendor(ctx, period.VendorID)
	if err != nil {
		err = payouts.Downstream("load vendor", err)
		return nil, err
	}
	items, err := s.items.ListLineItems(ctx, payouts.LineItemFilter{PayoutPeriodID: periodID})
	if err != nil {
		err = payouts.Downstream("list order items", err)
		return nil, err
	}
	input, err := s.join(ctx, items)
	if err != nil {
		return nil, err
	}
	input.Vendors[vendor.ID] = *vendor

	remittance = &Remittance{
		Period: *period,
		Vendor: *vendor,
		Items:  items,
		Orders: input.Orders,
	}
	if info, ok := input.PaymentInfos[vendor.ID]; ok {
		remittance.PaymentInfo = &info
	} else if infos, lookupErr := s.refs.PaymentInfoByVendorIDs(ctx, []string{vendor.ID}); lookupErr == nil {
		if info, ok := infos[vendor.ID]; ok {
			remittance.PaymentInfo = &info
		}
	}
	if aggs := payouts.AggregateVendorPayouts(input); len(aggs) > 0 {
		remittance.Summary = aggs[0]
	} else {
		remittance.Summary = payouts.VendorPayoutAggregate{
			VendorID:     vendor.ID,
			BusinessName: vendor.BusinessName,
			PayoutCode:   payouts.PayoutCode(vendor.ID),
			PayoutMethod: payouts.PayoutMethodLabel(remittance.PaymentInfo),
		}
	}
	return remittance, nil
}

// join loads the orders, vendors and payment info referenced by items.
func (s *PayoutService) join(ctx context.Context, items []payouts.OrderLineItem) (payouts.AggregationInput, error) {
	orderIDs := make([]string, 0, len(items))
	vendorIDs := make([]string, 0, len(items))
	seenOrders := make(map[string]struct{})
	seenVendors := make(map[string]struct{})
	for _, item := range items {
		if _, ok := seenOrders[item.OrderID]; !ok && item.OrderID != "" {
			seenOrders[item.OrderID] = struct{}{}
			orderIDs = append(orderIDs, item.OrderID)
		}
		if _, ok := seenVendors[item.VendorID]; !ok && item.VendorID != "" {
			seenVendors[item.VendorID] = struct{}{}
			vendorIDs = append(vendorIDs, item.VendorID)
		}
	}

	input := payouts.AggregationInput{Items: items}
	var err error
	if input.Orders, err = s.refs.OrdersByIDs(ctx, orderIDs); err != nil {
		return input, payouts.Downstream("load orders", err)
	}
	if input.Vendors, err = s.refs.VendorsByIDs(ctx, vendorIDs); err != nil {
		return input, payouts.Downstream("load vendors", err)
	}
	if input.PaymentInfos, err = s.refs.PaymentInfoByVendorIDs(ctx, vendorIDs); err != nil {
		return input, payouts.Downstream("load payment info", err)
	}
	if input.Orders == nil {
		input.Orders = map[string]payouts.Order{}
	}
	if input.Vendors == nil {
		input.Vendors = map[string]payouts.Vendor{}
	}
	return input, nil
}
