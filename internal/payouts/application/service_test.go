package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-payouts/internal/auth"
	payouts "marketplace-payouts/internal/payouts/domain"
	"marketplace-payouts/internal/payouts/infrastructure/memory"
)

const (
	testVendorID = "7f3c2a1e-0000-4000-8000-000000000001"
	testActorID  = "0b6f7d4c-1111-4000-8000-00000000aaaa"
	draftID      = "d0000000-0000-4000-8000-000000000001"
	approvedID   = "d0000000-0000-4000-8000-000000000002"
	completedID  = "d0000000-0000-4000-8000-000000000003"
	itemOneID    = "a0000000-0000-4000-8000-000000000001"
	itemTwoID    = "a0000000-0000-4000-8000-000000000002"
	itemHeldID   = "a0000000-0000-4000-8000-000000000003"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) byType(match func(any) bool) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []any
	for _, event := range p.events {
		if match(event) {
			out = append(out, event)
		}
	}
	return out
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*PayoutService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore()
	rate := 10.0
	store.PutVendor(payouts.Vendor{ID: testVendorID, BusinessName: "Acme Crafts", CommissionRate: &rate, Email: "acme@example.com"})
	store.PutOrder(payouts.Order{ID: "order-1", CreatedAt: time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)})
	store.PutOrder(payouts.Order{ID: "order-2", CreatedAt: time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)})
	store.PutItem(payouts.OrderLineItem{ID: itemOneID, OrderID: "order-1", VendorID: testVendorID, Quantity: 2, UnitPrice: 50, FulfillmentStatus: payouts.FulfillmentDelivered})
	store.PutItem(payouts.OrderLineItem{ID: itemTwoID, OrderID: "order-2", VendorID: testVendorID, Quantity: 1, UnitPrice: 200, FulfillmentStatus: payouts.FulfillmentDelivered})
	store.PutItem(payouts.OrderLineItem{ID: itemHeldID, OrderID: "order-2", VendorID: testVendorID, Quantity: 1, UnitPrice: 30, FulfillmentStatus: payouts.FulfillmentDelivered, PayoutHold: true, PayoutHoldReason: "dispute"})
	store.PutPeriod(payouts.PayoutPeriod{ID: draftID, VendorID: testVendorID, Status: payouts.PeriodStatusDraft, TotalVendorNet: 90})
	store.PutPeriod(payouts.PayoutPeriod{ID: approvedID, VendorID: testVendorID, Status: payouts.PeriodStatusApproved, TotalVendorNet: 120, ApprovedBy: "someone"})
	store.PutPeriod(payouts.PayoutPeriod{ID: completedID, VendorID: testVendorID, Status: payouts.PeriodStatusCompleted, TotalVendorNet: 75, PaymentReference: "TRX-1"})

	publisher := &recordingPublisher{}
	svc, err := NewPayoutService(store, store, store, store, WithPublisher(publisher), WithClock(fixedClock{now: testNow}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store, publisher
}

func asRole(role auth.Role) context.Context {
	return auth.WithIdentity(context.Background(), role, testActorID, "staff@example.com")
}

func TestNewPayoutService_RejectsNilDependencies(t *testing.T) {
	store := memory.NewStore()
	if _, err := NewPayoutService(nil, store, store, store); !errors.Is(err, payouts.ErrNilRepository) {
		t.Fatalf("expected ErrNilRepository, got %v", err)
	}
	if _, err := NewPayoutService(store, store, store, nil); err == nil {
		t.Fatalf("expected error for nil calculator")
	}
}

func TestMutations_RejectUnauthorizedBeforeStorage(t *testing.T) {
	svc, store, publisher := newTestService(t)
	opsCtx := asRole(auth.RoleOperationsManager)
	anonCtx := context.Background()

	calls := []struct {
		name string
		run  func() error
		want error
	}{
		{"approve anonymous", func() error { _, err := svc.ApprovePayout(anonCtx, draftID, nil); return err }, auth.ErrUnauthorized},
		{"approve ops manager", func() error { _, err := svc.ApprovePayout(opsCtx, draftID, nil); return err }, auth.ErrForbidden},
		{"mark paid ops manager", func() error { _, err := svc.MarkPayoutPaid(opsCtx, approvedID, "TRX", "bank"); return err }, auth.ErrForbidden},
		{"delete ops manager", func() error { _, err := svc.DeleteDraftPayout(opsCtx, draftID); return err }, auth.ErrForbidden},
		{"bulk ops manager", func() error { _, err := svc.GenerateBulkPayouts(opsCtx, "2026-03-02", nil); return err }, auth.ErrForbidden},
		{"approve items ops manager", func() error { _, err := svc.ApproveOrderItems(opsCtx, []string{itemOneID}); return err }, auth.ErrForbidden},
		{"generate anonymous", func() error {
			_, err := svc.GeneratePayout(anonCtx, testVendorID, []string{"2026-03-02"})
			return err
		}, auth.ErrUnauthorized},
		{"hold anonymous", func() error { _, err := svc.HoldOrderItem(anonCtx, itemOneID, true, ""); return err }, auth.ErrUnauthorized},
	}
	for _, tc := range calls {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if store.Calls != 0 {
		t.Fatalf("expected no repository calls, got %d", store.Calls)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no events, got %d", len(publisher.events))
	}
	if period, _ := store.Period(draftID); period.Status != payouts.PeriodStatusDraft {
		t.Fatalf("draft changed: %s", period.Status)
	}
}

func TestApprovePayout_DraftBecomesApproved(t *testing.T) {
	svc, store, publisher := newTestService(t)
	notes := "  looks good  "

	result, err := svc.ApprovePayout(asRole(auth.RoleFinanceAdmin), draftID, &notes)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	period, _ := store.Period(draftID)
	if period.Status != payouts.PeriodStatusApproved || period.ApprovedBy != testActorID || !period.ApprovedAt.Equal(testNow) {
		t.Fatalf("unexpected period: %+v", period)
	}
	if period.Notes != "looks good" {
		t.Fatalf("notes not trimmed: %q", period.Notes)
	}
	if data, ok := result.Data.(*payouts.PayoutPeriod); !ok || data.Status != payouts.PeriodStatusApproved {
		t.Fatalf("unexpected result data: %#v", result.Data)
	}
	approved := publisher.byType(func(e any) bool { _, ok := e.(PayoutApproved); return ok })
	if len(approved) != 1 || approved[0].(PayoutApproved).Amount != 90 {
		t.Fatalf("expected one PayoutApproved event, got %v", approved)
	}
	activity := publisher.byType(func(e any) bool { _, ok := e.(ActivityRecorded); return ok })
	if len(activity) != 1 || activity[0].(ActivityRecorded).Action != "approve_payout" {
		t.Fatalf("expected approve activity, got %v", activity)
	}
}

func TestApprovePayout_NonDraftConflicts(t *testing.T) {
	svc, store, publisher := newTestService(t)
	ctx := asRole(auth.RoleSuperAdmin)

	for _, id := range []string{approvedID, completedID} {
		before, _ := store.Period(id)
		_, err := svc.ApprovePayout(ctx, id, nil)
		var conflict *payouts.StateConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected conflict for %s, got %v", id, err)
		}
		if conflict.Current != before.Status {
			t.Fatalf("conflict status %s, want %s", conflict.Current, before.Status)
		}
		after, _ := store.Period(id)
		if after != before {
			t.Fatalf("period %s changed: %+v", id, after)
		}
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no events on conflict")
	}
}

func TestApprovePayout_MissingPeriod(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ApprovePayout(asRole(auth.RoleSuperAdmin), "d0000000-0000-4000-8000-0000000000ff", nil)
	if !errors.Is(err, payouts.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkPayoutPaid(t *testing.T) {
	svc, store, publisher := newTestService(t)
	ctx := asRole(auth.RoleFinanceAdmin)

	if _, err := svc.MarkPayoutPaid(ctx, draftID, "TRX-9", "bank_transfer"); err == nil {
		t.Fatalf("expected conflict for draft")
	} else {
		var conflict *payouts.StateConflictError
		if !errors.As(err, &conflict) || conflict.Current != payouts.PeriodStatusDraft {
			t.Fatalf("expected draft conflict, got %v", err)
		}
	}

	_, err := svc.MarkPayoutPaid(ctx, approvedID, " ", "")
	var verr *payouts.ValidationError
	if !errors.As(err, &verr) || verr.Fields["payment_reference"] == "" || verr.Fields["payment_method"] == "" {
		t.Fatalf("expected field errors, got %v", err)
	}

	if _, err := svc.MarkPayoutPaid(ctx, approvedID, " TRX-9 ", "bank_transfer"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	period, _ := store.Period(approvedID)
	if period.Status != payouts.PeriodStatusCompleted || period.PaymentReference != "TRX-9" || period.PaidBy != testActorID {
		t.Fatalf("unexpected period: %+v", period)
	}
	paid := publisher.byType(func(e any) bool { _, ok := e.(PayoutPaid); return ok })
	if len(paid) != 1 || paid[0].(PayoutPaid).Reference != "TRX-9" {
		t.Fatalf("expected PayoutPaid event, got %v", paid)
	}

	if _, err := svc.MarkPayoutPaid(ctx, approvedID, "TRX-10", "bank_transfer"); err == nil {
		t.Fatalf("expected conflict on second payment")
	}
	if period, _ := store.Period(approvedID); period.PaymentReference != "TRX-9" {
		t.Fatalf("completed period was overwritten: %+v", period)
	}
}

func TestDeleteDraftPayout(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := asRole(auth.RoleSuperAdmin)

	linked := draftID
	store.PutItem(payouts.OrderLineItem{ID: "a0000000-0000-4000-8000-000000000009", VendorID: testVendorID, FulfillmentStatus: payouts.FulfillmentDelivered, PayoutPeriodID: &linked})

	for _, id := range []string{approvedID, completedID} {
		_, err := svc.DeleteDraftPayout(ctx, id)
		var conflict *payouts.StateConflictError
		if !errors.As(err, &conflict) || conflict.Action != "delete" {
			t.Fatalf("expected delete conflict for %s, got %v", id, err)
		}
		if _, ok := store.Period(id); !ok {
			t.Fatalf("period %s removed", id)
		}
	}

	if _, err := svc.DeleteDraftPayout(ctx, draftID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, ok := store.Period(draftID); ok {
		t.Fatalf("draft still present")
	}
	item, _ := store.Item("a0000000-0000-4000-8000-000000000009")
	if item.PayoutPeriodID != nil {
		t.Fatalf("item still linked to %s", *item.PayoutPeriodID)
	}
}

func TestGeneratePayout(t *testing.T) {
	svc, store, _ := newTestService(t)
	for _, id := range []string{itemOneID, itemTwoID} {
		item, _ := store.Item(id)
		item.FinanceApproved, item.SuperAdminApproved = true, true
		store.PutItem(item)
	}

	result, err := svc.GeneratePayout(asRole(auth.RoleOperationsManager), testVendorID, []string{"2026-03-02", "2026-03-02"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	periods, ok := result.Data.([]payouts.PayoutPeriod)
	if !ok || len(periods) != 1 {
		t.Fatalf("expected one period, got %#v", result.Data)
	}
	if periods[0].Status != payouts.PeriodStatusDraft || periods[0].TotalVendorNet != 270 {
		t.Fatalf("unexpected period: %+v", periods[0])
	}
	if item, _ := store.Item(itemHeldID); item.PayoutPeriodID != nil {
		t.Fatalf("held item was linked")
	}
}

func TestGeneratePayout_Validation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := asRole(auth.RoleFinanceAdmin)

	_, err := svc.GeneratePayout(ctx, "not-a-uuid", []string{"2026-13-01"})
	var verr *payouts.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Fields["vendor_id"] == "" || verr.Fields["week_starts[0]"] == "" {
		t.Fatalf("unexpected fields: %v", verr.Fields)
	}
	if _, err := svc.GeneratePayout(ctx, testVendorID, nil); !errors.As(err, &verr) || verr.Fields["week_starts"] == "" {
		t.Fatalf("expected week_starts error, got %v", err)
	}
	if store.Calls != 0 {
		t.Fatalf("validation failures reached storage")
	}
}

func TestGeneratePayout_CalculatorFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.CalculateErr = errors.New("vendor has no approved items for week")

	_, err := svc.GeneratePayout(asRole(auth.RoleSuperAdmin), testVendorID, []string{"2026-03-02"})
	var downstream *payouts.DownstreamError
	if !errors.As(err, &downstream) {
		t.Fatalf("expected downstream error, got %v", err)
	}
	if err.Error() != "vendor has no approved items for week" {
		t.Fatalf("message not preserved: %q", err.Error())
	}
}

func TestHoldOrderItem(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := asRole(auth.RoleOperationsManager)

	if _, err := svc.HoldOrderItem(ctx, itemOneID, true, "   "); err != nil {
		t.Fatalf("hold: %v", err)
	}
	item, _ := store.Item(itemOneID)
	if !item.PayoutHold || item.PayoutHoldReason != payouts.DefaultHoldReason {
		t.Fatalf("unexpected hold: %+v", item)
	}

	if _, err := svc.HoldOrderItem(ctx, itemOneID, false, "ignored"); err != nil {
		t.Fatalf("release: %v", err)
	}
	item, _ = store.Item(itemOneID)
	if item.PayoutHold || item.PayoutHoldReason != "" {
		t.Fatalf("unexpected release: %+v", item)
	}

	if _, err := svc.HoldOrderItem(ctx, "a0000000-0000-4000-8000-0000000000ff", true, ""); !errors.Is(err, payouts.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApproveOrderItems_RoleSelectsField(t *testing.T) {
	svc, store, _ := newTestService(t)

	result, err := svc.ApproveOrderItems(asRole(auth.RoleFinanceAdmin), []string{itemOneID, itemHeldID, itemOneID})
	if err != nil {
		t.Fatalf("finance approve: %v", err)
	}
	data := result.Data.(map[string]any)
	if data["updated"] != 1 || data["skipped"] != 1 || data["field"] != string(payouts.ApprovalFinance) {
		t.Fatalf("unexpected result: %v", data)
	}
	item, _ := store.Item(itemOneID)
	if !item.FinanceApproved || item.SuperAdminApproved {
		t.Fatalf("finance flag not set alone: %+v", item)
	}
	if held, _ := store.Item(itemHeldID); held.FinanceApproved {
		t.Fatalf("held item approved")
	}

	if _, err := svc.ApproveOrderItems(asRole(auth.RoleSuperAdmin), []string{itemOneID}); err != nil {
		t.Fatalf("super approve: %v", err)
	}
	item, _ = store.Item(itemOneID)
	if !item.FinanceApproved || !item.SuperAdminApproved {
		t.Fatalf("expected both flags: %+v", item)
	}

	if _, err := svc.ApproveOrderItems(asRole(auth.RoleSuperAdmin), nil); err == nil {
		t.Fatalf("expected validation error for empty ids")
	}
}

func TestGenerateBulkPayouts(t *testing.T) {
	svc, store, publisher := newTestService(t)
	for _, id := range []string{itemOneID, itemTwoID} {
		item, _ := store.Item(id)
		item.FinanceApproved, item.SuperAdminApproved = true, true
		store.PutItem(item)
	}
	other := "7f3c2a1e-0000-4000-8000-000000000002"
	store.PutVendor(payouts.Vendor{ID: other, BusinessName: "Beta Goods"})

	result, err := svc.GenerateBulkPayouts(asRole(auth.RoleFinanceAdmin), "2026-03-02", nil)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	data := result.Data.(map[string]any)
	if data["processed"] != 1 || data["total"] != 2 {
		t.Fatalf("unexpected bulk summary: %v", data)
	}
	events := publisher.byType(func(e any) bool { _, ok := e.(BulkPayoutsGenerated); return ok })
	if len(events) != 1 || events[0].(BulkPayoutsGenerated).WeekStart != "2026-03-02" {
		t.Fatalf("expected bulk event, got %v", events)
	}

	store.BulkErr = errors.New("bulk routine unavailable")
	if _, err := svc.GenerateBulkPayouts(asRole(auth.RoleFinanceAdmin), "2026-03-09", nil); err == nil || err.Error() != "bulk routine unavailable" {
		t.Fatalf("expected routine error verbatim, got %v", err)
	}
}

func TestRequestVendorPaymentInfo(t *testing.T) {
	svc, store, publisher := newTestService(t)
	ctx := asRole(auth.RoleOperationsManager)

	result, err := svc.RequestVendorPaymentInfo(ctx, testVendorID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if result.Data.(map[string]any)["has_payment_info"] != false {
		t.Fatalf("expected no payment info: %v", result.Data)
	}

	store.PutPaymentInfo(payouts.PaymentInfo{VendorID: testVendorID, Method: payouts.PaymentMethodBank, BankName: "First Bank"})
	if _, err := svc.RequestVendorPaymentInfo(ctx, testVendorID); err != nil {
		t.Fatalf("request: %v", err)
	}
	requested := publisher.byType(func(e any) bool { _, ok := e.(PaymentInfoRequested); return ok })
	if len(requested) != 2 || !requested[1].(PaymentInfoRequested).HasPaymentInfo {
		t.Fatalf("unexpected events: %v", requested)
	}

	if _, err := svc.RequestVendorPaymentInfo(ctx, "7f3c2a1e-0000-4000-8000-0000000000ff"); !errors.Is(err, payouts.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPublisherFailureDoesNotFailMutation(t *testing.T) {
	svc, store, publisher := newTestService(t)
	publisher.err = errors.New("outbox down")

	if _, err := svc.ApprovePayout(asRole(auth.RoleSuperAdmin), draftID, nil); err != nil {
		t.Fatalf("approve should succeed: %v", err)
	}
	if period, _ := store.Period(draftID); period.Status != payouts.PeriodStatusApproved {
		t.Fatalf("mutation not applied")
	}
}

func TestListVendorPayouts(t *testing.T) {
	svc, _, _ := newTestService(t)

	aggs, err := svc.ListVendorPayouts(asRole(auth.RoleOperationsManager), payouts.LineItemFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("expected one vendor, got %d", len(aggs))
	}
	agg := aggs[0]
	if agg.BusinessName != "Acme Crafts" || agg.TotalSales != 300 || agg.HeldCount != 1 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
	if agg.PeriodLabel != "Mar 3, 2026 - Mar 5, 2026" {
		t.Fatalf("unexpected label: %s", agg.PeriodLabel)
	}

	if _, err := svc.ListVendorPayouts(context.Background(), payouts.LineItemFilter{}); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestListPayoutPeriods(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asRole(auth.RoleFinanceAdmin)

	periods, err := svc.ListPayoutPeriods(ctx, payouts.PeriodFilter{Status: payouts.PeriodStatusApproved})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(periods) != 1 || periods[0].ID != approvedID {
		t.Fatalf("unexpected periods: %+v", periods)
	}
	if _, err := svc.ListPayoutPeriods(ctx, payouts.PeriodFilter{Status: "paid"}); err == nil {
		t.Fatalf("expected validation error for unknown status")
	}
}

func TestGetRemittance(t *testing.T) {
	svc, store, _ := newTestService(t)
	linked := approvedID
	item, _ := store.Item(itemTwoID)
	item.PayoutPeriodID = &linked
	item.FinanceApproved, item.SuperAdminApproved = true, true
	store.PutItem(item)
	store.PutPaymentInfo(payouts.PaymentInfo{VendorID: testVendorID, Method: payouts.PaymentMethodMobileMoney, MobileProvider: "MTN", MobileNumber: "233201234567"})

	remittance, err := svc.GetRemittance(asRole(auth.RoleFinanceAdmin), approvedID)
	if err != nil {
		t.Fatalf("remittance: %v", err)
	}
	if len(remittance.Items) != 1 || remittance.Items[0].ID != itemTwoID {
		t.Fatalf("unexpected items: %+v", remittance.Items)
	}
	if remittance.PaymentInfo == nil || remittance.Summary.PayoutMethod != "Mobile money (MTN ****4567)" {
		t.Fatalf("unexpected payment info: %+v", remittance.Summary)
	}
	if remittance.Summary.TotalVendorNet != 180 {
		t.Fatalf("unexpected net: %v", remittance.Summary.TotalVendorNet)
	}
}
