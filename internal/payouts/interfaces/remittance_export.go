package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"marketplace-payouts/internal/payouts/application"
	payouts "marketplace-payouts/internal/payouts/domain"
)

var errNilRemittance = errors.New("remittance export: nil remittance")

// BuildRemittancePDF renders a remittance advice for a payout period.
func BuildRemittancePDF(rem *application.Remittance) ([]byte, error) {
	if rem == nil {
		return nil, errNilRemittance
	}
	period := rem.Period
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Payout Remittance Advice")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Vendor: %s", rem.Vendor.BusinessName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Payout code: %s", rem.Summary.PayoutCode))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s", periodWindow(period)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", period.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Payout method: %s", payouts.PayoutMethodLabel(rem.PaymentInfo)))
	pdf.Ln(5)
	if !period.ApprovedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Approved: %s", period.ApprovedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	if period.Status == payouts.PeriodStatusCompleted {
		pdf.Cell(0, 6, fmt.Sprintf("Paid: %s via %s, ref %s", period.PaidAt.Format(time.RFC3339), period.PaymentMethod, period.PaymentReference))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total sales: %.2f", rem.Summary.TotalSales))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Commission (%.2f%%): %.2f", rem.Summary.CommissionRate*100, rem.Summary.TotalCommission))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Vendor net: %.2f", period.TotalVendorNet))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Order", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Ordered", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Unit price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Line total", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range rem.Items {
		pdf.CellFormat(60, 6, shortID(item.OrderID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, orderedOn(rem.Orders, item.OrderID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", float64(item.Quantity)*item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRemittanceXLSX renders the remittance as a two-sheet workbook.
func BuildRemittanceXLSX(rem *application.Remittance) ([]byte, error) {
	if rem == nil {
		return nil, errNilRemittance
	}
	period := rem.Period
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	itemsSheet := "items"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Payout Remittance Advice", ""},
		{"", ""},
		{"Vendor", rem.Vendor.BusinessName},
		{"Payout code", rem.Summary.PayoutCode},
		{"Period", periodWindow(period)},
		{"Status", string(period.Status)},
		{"Payout method", payouts.PayoutMethodLabel(rem.PaymentInfo)},
		{"Total sales", rem.Summary.TotalSales},
		{"Commission rate", rem.Summary.CommissionRate},
		{"Commission", rem.Summary.TotalCommission},
		{"Vendor net", period.TotalVendorNet},
		{"Payment reference", period.PaymentReference},
		{"Payment method", period.PaymentMethod},
	}
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	_ = f.SetCellValue(itemsSheet, "A1", "Order item")
	_ = f.SetCellValue(itemsSheet, "B1", "Order")
	_ = f.SetCellValue(itemsSheet, "C1", "Ordered")
	_ = f.SetCellValue(itemsSheet, "D1", "Quantity")
	_ = f.SetCellValue(itemsSheet, "E1", "Unit price")
	_ = f.SetCellValue(itemsSheet, "F1", "Line total")
	for i, item := range rem.Items {
		row := i + 2
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), item.ID)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), item.OrderID)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), orderedOn(rem.Orders, item.OrderID))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), item.Quantity)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("E%d", row), item.UnitPrice)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("F%d", row), float64(item.Quantity)*item.UnitPrice)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func periodWindow(period payouts.PayoutPeriod) string {
	if period.WeekStart.IsZero() {
		return "-"
	}
	end := period.WeekEnd
	if end.IsZero() {
		end = period.WeekStart.AddDate(0, 0, 7)
	}
	return payouts.PeriodLabel(period.WeekStart, end.AddDate(0, 0, -1))
}

func orderedOn(orders map[string]payouts.Order, orderID string) string {
	order, ok := orders[orderID]
	if !ok || order.CreatedAt.IsZero() {
		return ""
	}
	return order.CreatedAt.Format("2006-01-02")
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
