package interfaces

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"marketplace-payouts/internal/payouts/application"
	payouts "marketplace-payouts/internal/payouts/domain"
)

func sampleRemittance() *application.Remittance {
	week := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	return &application.Remittance{
		Period: payouts.PayoutPeriod{
			ID:               "d0000000-0000-4000-8000-000000000002",
			VendorID:         "7f3c2a1e-0000-4000-8000-000000000001",
			Status:           payouts.PeriodStatusCompleted,
			TotalVendorNet:   180,
			WeekStart:        week,
			WeekEnd:          week.AddDate(0, 0, 7),
			PaymentReference: "TRX-9",
			PaymentMethod:    "bank_transfer",
			PaidAt:           week.AddDate(0, 0, 9),
		},
		Vendor: payouts.Vendor{ID: "7f3c2a1e-0000-4000-8000-000000000001", BusinessName: "Acme Crafts"},
		Items: []payouts.OrderLineItem{
			{ID: "a0000000-0000-4000-8000-000000000002", OrderID: "order-2", Quantity: 1, UnitPrice: 200},
		},
		Orders: map[string]payouts.Order{
			"order-2": {ID: "order-2", CreatedAt: week.AddDate(0, 0, 3)},
		},
		Summary: payouts.VendorPayoutAggregate{PayoutCode: "PAY-7F3C2A1E", TotalSales: 200, TotalCommission: 20, CommissionRate: 0.1},
	}
}

func TestBuildRemittancePDF(t *testing.T) {
	data, err := BuildRemittancePDF(sampleRemittance())
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a pdf")
	}
}

func TestBuildRemittanceXLSX(t *testing.T) {
	data, err := BuildRemittanceXLSX(sampleRemittance())
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	vendor, _ := f.GetCellValue("summary", "B3")
	if vendor != "Acme Crafts" {
		t.Fatalf("vendor cell: %q", vendor)
	}
	window, _ := f.GetCellValue("summary", "B5")
	if window != "Mar 2, 2026 - Mar 8, 2026" {
		t.Fatalf("period cell: %q", window)
	}
	ordered, _ := f.GetCellValue("items", "C2")
	if ordered != "2026-03-05" {
		t.Fatalf("ordered cell: %q", ordered)
	}
}

func TestBuildRemittance_Nil(t *testing.T) {
	if _, err := BuildRemittancePDF(nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := BuildRemittanceXLSX(nil); err == nil {
		t.Fatalf("expected error")
	}
}
