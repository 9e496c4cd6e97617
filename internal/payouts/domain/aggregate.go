package payouts

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// AggregationInput is the joined data set the aggregator reads.
type AggregationInput struct {
	Items        []OrderLineItem
	Orders       map[string]Order
	Vendors      map[string]Vendor
	PaymentInfos map[string]PaymentInfo
}

// VendorPayoutAggregate is the derived per-vendor settlement view.
type VendorPayoutAggregate struct {
	VendorID            string           `json:"vendor_id"`
	BusinessName        string           `json:"business_name"`
	PayoutCode          string           `json:"payout_code"`
	CommissionRate      float64          `json:"commission_rate"`
	TotalSales          float64          `json:"total_sales"`
	TotalVendorNet      float64          `json:"total_vendor_net"`
	TotalCommission     float64          `json:"total_commission"`
	PendingPayoutAmount float64          `json:"pending_payout_amount"`
	BothApprovedCount   int              `json:"both_approved_count"`
	FinanceOnlyCount    int              `json:"finance_only_count"`
	SuperOnlyCount      int              `json:"super_only_count"`
	NoApprovalCount     int              `json:"no_approval_count"`
	ItemCount           int              `json:"item_count"`
	HeldCount           int              `json:"held_count"`
	HeldAmount          float64          `json:"held_amount"`
	OrderIDs            []string         `json:"order_ids"`
	FirstOrderAt        time.Time        `json:"first_order_at,omitempty"`
	LastOrderAt         time.Time        `json:"last_order_at,omitempty"`
	PeriodLabel         string           `json:"period_label"`
	PayoutMethod        string           `json:"payout_method"`
	NormalizedStatus    SettlementStatus `json:"normalized_status"`
}

type vendorAccumulator struct {
	agg        VendorPayoutAggregate
	rate       decimal.Decimal
	sales      decimal.Decimal
	net        decimal.Decimal
	commission decimal.Decimal
	pending    decimal.Decimal
	held       decimal.Decimal
	orders     map[string]struct{}
}

// AggregateVendorPayouts groups delivered line items by vendor and computes
// commission-adjusted totals and approval counts. Held items are excluded from
// totals and counts and reported through HeldCount/HeldAmount.
func AggregateVendorPayouts(input AggregationInput) []VendorPayoutAggregate {
	byVendor := make(map[string]*vendorAccumulator)

	for _, item := range input.Items {
		if item.FulfillmentStatus != FulfillmentDelivered || item.VendorID == "" {
			continue
		}
		acc := byVendor[item.VendorID]
		if acc == nil {
			acc = newVendorAccumulator(item.VendorID, input)
			byVendor[item.VendorID] = acc
		}

		lineAmount := decimal.NewFromInt(int64(item.Quantity)).Mul(decimal.NewFromFloat(item.UnitPrice))
		fee := lineAmount.Mul(acc.rate)
		vendorShare := lineAmount.Sub(fee)

		if item.PayoutHold {
			acc.agg.HeldCount++
			acc.held = acc.held.Add(vendorShare)
			continue
		}

		acc.agg.ItemCount++
		acc.sales = acc.sales.Add(lineAmount)
		acc.net = acc.net.Add(vendorShare)
		acc.commission = acc.commission.Add(fee)

		switch {
		case item.FinanceApproved && item.SuperAdminApproved:
			acc.agg.BothApprovedCount++
		case item.FinanceApproved:
			acc.agg.FinanceOnlyCount++
			acc.pending = acc.pending.Add(vendorShare)
		case item.SuperAdminApproved:
			acc.agg.SuperOnlyCount++
			acc.pending = acc.pending.Add(vendorShare)
		default:
			acc.agg.NoApprovalCount++
			acc.pending = acc.pending.Add(vendorShare)
		}

		if item.OrderID != "" {
			acc.orders[item.OrderID] = struct{}{}
			if order, ok := input.Orders[item.OrderID]; ok && !order.CreatedAt.IsZero() {
				created := order.CreatedAt.UTC()
				if acc.agg.FirstOrderAt.IsZero() || created.Before(acc.agg.FirstOrderAt) {
					acc.agg.FirstOrderAt = created
				}
				if acc.agg.LastOrderAt.IsZero() || created.After(acc.agg.LastOrderAt) {
					acc.agg.LastOrderAt = created
				}
			}
		}
	}

	result := make([]VendorPayoutAggregate, 0, len(byVendor))
	for _, acc := range byVendor {
		result = append(result, acc.finish())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].BusinessName != result[j].BusinessName {
			return result[i].BusinessName < result[j].BusinessName
		}
		return result[i].VendorID < result[j].VendorID
	})
	return result
}

func newVendorAccumulator(vendorID string, input AggregationInput) *vendorAccumulator {
	vendor := input.Vendors[vendorID]
	rate := NormalizeCommissionRate(vendor.CommissionRate)
	acc := &vendorAccumulator{
		agg: VendorPayoutAggregate{
			VendorID:       vendorID,
			BusinessName:   vendor.BusinessName,
			PayoutCode:     PayoutCode(vendorID),
			CommissionRate: rate,
		},
		rate:   decimal.NewFromFloat(rate),
		orders: make(map[string]struct{}),
	}
	if info, ok := input.PaymentInfos[vendorID]; ok {
		acc.agg.PayoutMethod = PayoutMethodLabel(&info)
	} else {
		acc.agg.PayoutMethod = PayoutMethodLabel(nil)
	}
	return acc
}

func (a *vendorAccumulator) finish() VendorPayoutAggregate {
	agg := a.agg
	agg.TotalSales = a.sales.InexactFloat64()
	agg.TotalVendorNet = a.net.InexactFloat64()
	agg.TotalCommission = a.commission.InexactFloat64()
	agg.PendingPayoutAmount = a.pending.InexactFloat64()
	agg.HeldAmount = a.held.InexactFloat64()

	agg.OrderIDs = make([]string, 0, len(a.orders))
	for id := range a.orders {
		agg.OrderIDs = append(agg.OrderIDs, id)
	}
	sort.Strings(agg.OrderIDs)

	agg.PeriodLabel = PeriodLabel(agg.FirstOrderAt, agg.LastOrderAt)
	agg.NormalizedStatus = Classify(agg.NoApprovalCount, agg.FinanceOnlyCount, agg.SuperOnlyCount, agg.BothApprovedCount)
	return agg
}

// PayoutCode derives a stable display code from a vendor id.
func PayoutCode(vendorID string) string {
	const codeLen = 8
	var b strings.Builder
	written := 0
	for _, r := range vendorID {
		if written == codeLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			written++
		}
	}
	if written == 0 {
		return "PAY-UNKNOWN"
	}
	return "PAY-" + b.String()
}

// PeriodLabel renders the order window of an aggregate.
func PeriodLabel(first, last time.Time) string {
	const layout = "Jan 2, 2006"
	if first.IsZero() && last.IsZero() {
		return ""
	}
	if first.IsZero() {
		first = last
	}
	if last.IsZero() {
		last = first
	}
	if first.Format("2006-01-02") == last.Format("2006-01-02") {
		return first.Format(layout)
	}
	return first.Format(layout) + " - " + last.Format(layout)
}

// PayoutMethodLabel describes how a vendor will be paid.
func PayoutMethodLabel(info *PaymentInfo) string {
	if info == nil {
		return "Not set"
	}
	switch info.Method {
	case PaymentMethodBank:
		label := "Bank transfer"
		if info.BankName != "" {
			label += " (" + info.BankName
			if tail := lastDigits(info.AccountNumber, 4); tail != "" {
				label += " ****" + tail
			}
			label += ")"
		}
		return label
	case PaymentMethodMobileMoney:
		label := "Mobile money"
		if info.MobileProvider != "" {
			label += " (" + info.MobileProvider
			if tail := lastDigits(info.MobileNumber, 4); tail != "" {
				label += " ****" + tail
			}
			label += ")"
		}
		return label
	default:
		return "Not set"
	}
}

func lastDigits(value string, n int) string {
	value = strings.TrimSpace(value)
	if len(value) <= n {
		return value
	}
	return value[len(value)-n:]
}
