package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-payouts/internal/auth"
	payouts "marketplace-payouts/internal/payouts/domain"
)

// HoldOrderItem places or releases a payout hold on one line item.
func (s *PayoutService) HoldOrderItem(ctx context.Context, itemID string, hold bool, reason string) (result MutationResult, err error) {
	defer observe("hold_order_item", time.Now(), &err)

	role, err := auth.Require(ctx, auth.PayoutOperators...)
	if err != nil {
		return result, err
	}
	verr := &payouts.ValidationError{}
	itemID = checkUUID(verr, "order_item_id", itemID)
	if err = validationErr(verr); err != nil {
		return result, err
	}

	reason = strings.TrimSpace(reason)
	if !hold {
		reason = ""
	} else if reason == "" {
		reason = payouts.DefaultHoldReason
	}

	if err = s.items.SetHold(ctx, itemID, hold, reason); err != nil {
		err = payouts.Downstream("set payout hold", err)
		return result, err
	}
	item, err := s.items.GetLineItem(ctx, itemID)
	if err != nil {
		err = payouts.Downstream("load order item", err)
		return result, err
	}

	action, message := "hold_order_item", "Order item placed on payout hold"
	if !hold {
		action, message = "release_order_item", "Order item released from payout hold"
	}
	details := map[string]any{"vendor_id": item.VendorID}
	if hold {
		details["reason"] = reason
	}
	s.recordActivity(ctx, role, action, "order_item", itemID, details)

	return MutationResult{Message: message, Data: item}, nil
}

// ApproveOrderItems grants the caller's side of the dual approval on each eligible item.
// Finance admins set the finance flag, super admins the super admin flag.
func (s *PayoutService) ApproveOrderItems(ctx context.Context, itemIDs []string) (result MutationResult, err error) {
	defer observe("approve_order_items", time.Now(), &err)

	role, err := auth.Require(ctx, auth.PayoutApprovers...)
	if err != nil {
		return result, err
	}
	verr := &payouts.ValidationError{}
	if len(itemIDs) == 0 {
		verr.Add("item_ids", "at least one item id is required")
	}
	seen := make(map[string]struct{}, len(itemIDs))
	ids := make([]string, 0, len(itemIDs))
	for i, raw := range itemIDs {
		id := checkUUID(verr, indexed("item_ids", i), raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err = validationErr(verr); err != nil {
		return result, err
	}

	field := payouts.ApprovalFinance
	if role == auth.RoleSuperAdmin {
		field = payouts.ApprovalSuperAdmin
	}

	updated, err := s.items.SetApproval(ctx, ids, field)
	if err != nil {
		err = payouts.Downstream("approve order items", err)
		return result, err
	}
	if updated == nil {
		updated = []string{}
	}
	skipped := len(ids) - len(updated)

	s.recordActivity(ctx, role, "approve_order_items", "order_item", strings.Join(updated, ","), map[string]any{
		"field":   string(field),
		"updated": len(updated),
		"skipped": skipped,
	})

	return MutationResult{
		Message: fmt.Sprintf("Approved %d item(s), skipped %d", len(updated), skipped),
		Data: map[string]any{
			"updated":  len(updated),
			"skipped":  skipped,
			"item_ids": updated,
			"field":    string(field),
		},
	}, nil
}

// RequestVendorPaymentInfo asks a vendor to submit or confirm payout details.
func (s *PayoutService) RequestVendorPaymentInfo(ctx context.Context, vendorID string) (result MutationResult, err error) {
	defer observe("request_vendor_payment_info", time.Now(), &err)

	role, err := auth.Require(ctx, auth.PayoutOperators...)
	if err != nil {
		return result, err
	}
	verr := &payouts.ValidationError{}
	vendorID = checkUUID(verr, "vendor_id", vendorID)
	if err = validationErr(verr); err != nil {
		return result, err
	}

	vendor, err := s.refs.GetVendor(ctx, vendorID)
	if err != nil {
		err = payouts.Downstream("load vendor", err)
		return result, err
	}
	infos, err := s.refs.PaymentInfoByVendorIDs(ctx, []string{vendorID})
	if err != nil {
		err = payouts.Downstream("load payment info", err)
		return result, err
	}
	_, hasInfo := infos[vendorID]

	s.emit(ctx, PaymentInfoRequested{
		VendorID:       vendorID,
		HasPaymentInfo: hasInfo,
		ActorID:        auth.SubjectFromContext(ctx),
		OccurredAt:     s.clock.Now(),
	})
	s.recordActivity(ctx, role, "request_vendor_payment_info", "vendor", vendorID, map[string]any{
		"has_payment_info": hasInfo,
	})

	return MutationResult{
		Message: fmt.Sprintf("Payment information requested from %s", vendorName(vendor)),
		Data: map[string]any{
			"vendor_id":        vendorID,
			"has_payment_info": hasInfo,
		},
	}, nil
}
