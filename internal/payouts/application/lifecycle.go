package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketplace-payouts/internal/auth"
	payouts "marketplace-payouts/internal/payouts/domain"
)

// GeneratePayout runs the weekly calculation for a vendor and returns the draft periods created.
func (s *PayoutService) GeneratePayout(ctx context.Context, vendorID string, weekStarts []string) (result MutationResult, err error) {
	defer observe("generate_payout", time.Now(), &err)

	role, err := auth.Require(ctx, auth.PayoutOperators...)
	if err != nil {
		return result, err
	}

	verr := &payouts.ValidationError{}
	vendorID = checkUUID(verr, "vendor_id", vendorID)
	if len(weekStarts) == 0 {
		verr.Add("week_starts", "at least one week start is required")
	}
	seen := make(map[time.Time]struct{}, len(weekStarts))
	days := make([]time.Time, 0, len(weekStarts))
	for i, raw := range weekStarts {
		day := checkDate(verr, indexed("week_starts", i), raw)
		if day.IsZero() {
			continue
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	if err = validationErr(verr); err != nil {
		return result, err
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	vendor, err := s.refs.GetVendor(ctx, vendorID)
	if err != nil {
		err = payouts.Downstream("load vendor", err)
		return result, err
	}

	periods, err := s.calc.CalculateWeeklyPayout(ctx, vendorID, days)
	if err != nil {
		err = payouts.Downstream("calculate_weekly_payout", err)
		return result, err
	}
	if periods == nil {
		periods = []payouts.PayoutPeriod{}
	}

	labels := make([]string, 0, len(days))
	for _, day := range days {
		labels = append(labels, day.Format(DateLayout))
	}
	s.recordActivity(ctx, role, "generate_payout", "vendor", vendorID, map[string]any{
		"week_starts":     labels,
		"periods_created": len(periods),
	})
	s.logger.Info().
		Str("vendor_id", vendorID).
		Int("periods", len(periods)).
		Msg("payout generated")

	return MutationResult{
		Message: fmt.Sprintf("Generated %d payout period(s) for %s", len(periods), vendorName(vendor)),
		Data:    periods,
	}, nil
}

// ApprovePayout moves a draft period to approved.
func (s *PayoutService) ApprovePayout(ctx context.Context, periodID string, notes *string) (result MutationResult, err error) {
	defer observe("approve_payout", time.Now(), &err)

	role, err := auth.Require(ctx, auth.PayoutApprovers...)
	if err != nil {
		return result, err
	}
	verr := &payouts.ValidationError{}
	periodID = checkUUID(verr, "payout_id", periodID)
	if err = validationErr(verr); err != nil {
		return result, err
	}
	if notes != nil {
		trimmed := strings.TrimSpace(*notes)
		if trimmed == "" {
			notes = nil
		} else {
			notes = &trimmed
		}
	}

	actor := auth.SubjectFromContext(ctx)
	applied, err := s.periods.ApproveDraft(ctx, periodID, actor, s.clock.Now(), notes)
	if err != nil {
		err = payouts.Downstream("approve payout", err)
		return result, err
	}
	if !applied {
		err = s.transitionConflict(ctx, periodID, "approve")
		return result, err
	}

	period, err := s.periods.GetPeriod(ctx, periodID)
	if err != nil {
		err = payouts.Downstream("load payout period", err)
		return result, err
	}

	s.emit(ctx, PayoutApproved{
		PeriodID:   period.ID,
		VendorID:   period.VendorID,
		Amount:     period.TotalVendorNet,
		Notes:      period.Notes,
		ActorID:    actor,
		OccurredAt: period.ApprovedAt,
	})
	s.recordActivity(ctx, role, "approve_payout", "payout_period", periodID, map[string]any{
		"vendor_id": period.VendorID,
		"amount":    period.TotalVendorNet,
	})

	return MutationResult{Message: "Payout approved", Data: period}, nil
}

// MarkPayoutPaid records the payment of an approved period.
func (s *PayoutService) MarkPayoutPaid(ctx context.Context, periodID, paymentReference, paymentMethod string) (result MutationResult, err error) {
	defer observe("mark_payout_paid", time.Now(), &err)

	role, err := auth.Require(ctx, auth.PayoutApprovers...)
	if err != nil {
		return result, err
	}
	verr := &payouts.ValidationError{}
	periodID = checkUUID(verr, "payout_id", periodID)
	paymentReference = strings.TrimSpace(paymentReference)
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentReference == "" {
		verr.Add("payment_reference", "is required")
	}
	if paymentMethod == "" {
		verr.Add("payment_method", "is required")
	}
	if err = validationErr(verr); err != nil {
		return result, err
	}

	actor := auth.SubjectFromContext(ctx)
	applied, err := s.periods.CompleteApproved(ctx, periodID, actor, s.clock.Now(), paymentReference, paymentMethod)
	if err != nil {
		err = payouts.Downstream("mark payout paid", err)
		return result, err
	}
	if !applied {
		err = s.transitionConflict(ctx, periodID, "mark paid")
		return result, err
	}

	period, err := s.periods.GetPeriod(ctx, periodID)
	if err != nil {
		err = payouts.Downstream("load payout period", err)
		return result, err
	}

	s.emit(ctx, PayoutPaid{
		PeriodID:   period.ID,
		VendorID:   period.VendorID,
		Amount:     period.TotalVendorNet,
		Reference:  period.PaymentReference,
		Method:     period.PaymentMethod,
		ActorID:    actor,
		OccurredAt: period.PaidAt,
	})
	s.recordActivity(ctx, role, "mark_payout_paid", "payout_period", periodID, map[string]any{
		"vendor_id":         period.VendorID,
		"payment_reference": paymentReference,
		"payment_method":    paymentMethod,
	})

	return MutationResult{Message: "Payout marked as paid", Data: period}, nil
}

// DeleteDraftPayout removes a draft period and releases its line items.
func (s *PayoutService) DeleteDraftPayout(ctx context.Context, periodID string) (result MutationResult, err error) {
	defer observe("delete_draft_payout", time.Now(), &err)

	role, err := auth.Require(ctx, auth.PayoutApprovers...)
	if err != nil {
		return result, err
	}
	verr := &payouts.ValidationError{}
	periodID = checkUUID(verr, "payout_id", periodID)
	if err = validationErr(verr); err != nil {
		return result, err
	}

	deleted, current, err := s.periods.DeleteDraft(ctx, periodID)
	if err != nil {
		err = payouts.Downstream("delete draft payout", err)
		return result, err
	}
	if !deleted {
		err = &payouts.StateConflictError{Resource: "payout period", ID: periodID, Action: "delete", Current: current}
		return result, err
	}

	s.recordActivity(ctx, role, "delete_draft_payout", "payout_period", periodID, nil)
	return MutationResult{Message: "Draft payout deleted", Data: map[string]string{"id": periodID}}, nil
}

// GenerateBulkPayouts runs the bulk routine for one week. An empty vendor list means every vendor.
func (s *PayoutService) GenerateBulkPayouts(ctx context.Context, weekStart string, vendorIDs []string) (result MutationResult, err error) {
	defer observe("generate_bulk_payouts", time.Now(), &err)

	role, err := auth.Require(ctx, auth.PayoutApprovers...)
	if err != nil {
		return result, err
	}
	verr := &payouts.ValidationError{}
	day := checkDate(verr, "week_start", weekStart)
	var ids []string
	for i, raw := range vendorIDs {
		if id := checkUUID(verr, indexed("vendor_ids", i), raw); id != "" {
			ids = append(ids, id)
		}
	}
	if err = validationErr(verr); err != nil {
		return result, err
	}

	rows, err := s.calc.ProcessBulkPayouts(ctx, day, ids)
	if err != nil {
		err = payouts.Downstream("process_bulk_payouts", err)
		return result, err
	}
	if rows == nil {
		rows = []payouts.BulkPayoutResult{}
	}
	processed := 0
	for _, row := range rows {
		if row.Status == payouts.BulkStatusProcessed {
			processed++
		}
	}

	label := day.Format(DateLayout)
	s.emit(ctx, BulkPayoutsGenerated{
		WeekStart:  label,
		Processed:  processed,
		Total:      len(rows),
		ActorID:    auth.SubjectFromContext(ctx),
		OccurredAt: s.clock.Now(),
	})
	s.recordActivity(ctx, role, "generate_bulk_payouts", "payout_period", label, map[string]any{
		"processed": processed,
		"total":     len(rows),
	})

	return MutationResult{
		Message: fmt.Sprintf("Processed %d of %d vendors", processed, len(rows)),
		Data: map[string]any{
			"results":   rows,
			"processed": processed,
			"total":     len(rows),
		},
	}, nil
}

func vendorName(vendor *payouts.Vendor) string {
	if vendor == nil || vendor.BusinessName == "" {
		return "vendor"
	}
	return vendor.BusinessName
}
