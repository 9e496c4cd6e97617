package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	payouts "marketplace-payouts/internal/payouts/domain"
)

func TestStore_ConditionalTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.PutPeriod(payouts.PayoutPeriod{ID: "p-1", VendorID: "v-1", Status: payouts.PeriodStatusDraft})

	now := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)
	if ok, err := store.CompleteApproved(ctx, "p-1", "staff-1", now, "TRX", "bank"); err != nil || ok {
		t.Fatalf("complete on draft should not apply: %v %v", ok, err)
	}
	if ok, err := store.ApproveDraft(ctx, "p-1", "staff-1", now, nil); err != nil || !ok {
		t.Fatalf("approve draft: %v %v", ok, err)
	}
	if ok, _ := store.ApproveDraft(ctx, "p-1", "staff-2", now, nil); ok {
		t.Fatal("second approve should not apply")
	}
	period, _ := store.Period("p-1")
	if period.ApprovedBy != "staff-1" {
		t.Fatalf("approved_by overwritten: %s", period.ApprovedBy)
	}
	if ok, _ := store.CompleteApproved(ctx, "p-1", "staff-1", now, "TRX", "bank"); !ok {
		t.Fatal("complete approved should apply")
	}
	if deleted, current, err := store.DeleteDraft(ctx, "p-1"); err != nil || deleted || current != payouts.PeriodStatusCompleted {
		t.Fatalf("delete completed: %v %v %v", deleted, current, err)
	}
}

func TestStore_ConcurrentApproveOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.PutPeriod(payouts.PayoutPeriod{ID: "p-race", VendorID: "v-1", Status: payouts.PeriodStatusDraft})
	now := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(actor string) {
			defer wg.Done()
			<-start
			ok, err := store.ApproveDraft(ctx, "p-race", actor, now, nil)
			if err != nil {
				t.Errorf("approve: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners = append(winners, actor)
				mu.Unlock()
			}
		}(fmt.Sprintf("staff-%d", i))
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one approve to apply, got %v", winners)
	}
	period, _ := store.Period("p-race")
	if period.ApprovedBy != winners[0] {
		t.Fatalf("approved_by %s, want %s", period.ApprovedBy, winners[0])
	}
}

func TestStore_DeleteDraftUnlinksItems(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	periodID := "p-2"
	store.PutPeriod(payouts.PayoutPeriod{ID: periodID, Status: payouts.PeriodStatusDraft})
	store.PutItem(payouts.OrderLineItem{ID: "i-1", PayoutPeriodID: &periodID})

	deleted, _, err := store.DeleteDraft(ctx, periodID)
	if err != nil || !deleted {
		t.Fatalf("delete draft: %v %v", deleted, err)
	}
	item, _ := store.Item("i-1")
	if item.PayoutPeriodID != nil {
		t.Fatalf("expected item unlinked")
	}
	if _, _, err := store.DeleteDraft(ctx, periodID); !errors.Is(err, payouts.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_CalculateWeeklyPayoutLinksApprovedItems(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	rate := 10.0
	store.PutVendor(payouts.Vendor{ID: "v-1", CommissionRate: &rate})
	weekStart := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	store.PutOrder(payouts.Order{ID: "o-1", CreatedAt: weekStart.Add(26 * time.Hour)})
	store.PutOrder(payouts.Order{ID: "o-2", CreatedAt: weekStart.AddDate(0, 0, 8)})
	store.PutItem(payouts.OrderLineItem{ID: "i-1", OrderID: "o-1", VendorID: "v-1", Quantity: 2, UnitPrice: 50, FulfillmentStatus: payouts.FulfillmentDelivered, FinanceApproved: true, SuperAdminApproved: true})
	store.PutItem(payouts.OrderLineItem{ID: "i-2", OrderID: "o-1", VendorID: "v-1", Quantity: 1, UnitPrice: 50, FulfillmentStatus: payouts.FulfillmentDelivered, FinanceApproved: true})
	store.PutItem(payouts.OrderLineItem{ID: "i-3", OrderID: "o-2", VendorID: "v-1", Quantity: 1, UnitPrice: 50, FulfillmentStatus: payouts.FulfillmentDelivered, FinanceApproved: true, SuperAdminApproved: true})

	periods, err := store.CalculateWeeklyPayout(ctx, "v-1", []time.Time{weekStart})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if len(periods) != 1 || periods[0].TotalVendorNet != 90 || periods[0].Status != payouts.PeriodStatusDraft {
		t.Fatalf("unexpected periods %+v", periods)
	}
	if item, _ := store.Item("i-1"); item.PayoutPeriodID == nil || *item.PayoutPeriodID != periods[0].ID {
		t.Fatalf("expected i-1 linked")
	}
	for _, id := range []string{"i-2", "i-3"} {
		if item, _ := store.Item(id); item.PayoutPeriodID != nil {
			t.Fatalf("expected %s unlinked", id)
		}
	}
}

func TestStore_SetApprovalSkipsIneligible(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	completed := "p-done"
	store.PutPeriod(payouts.PayoutPeriod{ID: completed, Status: payouts.PeriodStatusCompleted})
	store.PutItem(payouts.OrderLineItem{ID: "ok", FulfillmentStatus: payouts.FulfillmentDelivered})
	store.PutItem(payouts.OrderLineItem{ID: "held", FulfillmentStatus: payouts.FulfillmentDelivered, PayoutHold: true})
	store.PutItem(payouts.OrderLineItem{ID: "shipped", FulfillmentStatus: payouts.FulfillmentShipped})
	store.PutItem(payouts.OrderLineItem{ID: "settled", FulfillmentStatus: payouts.FulfillmentDelivered, PayoutPeriodID: &completed})

	updated, err := store.SetApproval(ctx, []string{"ok", "held", "shipped", "settled", "missing"}, payouts.ApprovalFinance)
	if err != nil {
		t.Fatalf("set approval: %v", err)
	}
	if len(updated) != 1 || updated[0] != "ok" {
		t.Fatalf("unexpected updated ids %v", updated)
	}
	if item, _ := store.Item("ok"); !item.FinanceApproved || item.SuperAdminApproved {
		t.Fatalf("unexpected flags %+v", item)
	}
}
