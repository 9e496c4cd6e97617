package application

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"marketplace-payouts/internal/audit"
	"marketplace-payouts/internal/eventing/eventbus"
	"marketplace-payouts/internal/notify"
	payouts "marketplace-payouts/internal/payouts/domain"
)

// NotificationConsumer turns payout events into admin and vendor messages.
type NotificationConsumer struct {
	notifier  notify.Notifier
	templates *notify.Templates
	refs      payouts.ReferenceReader
	logger    zerolog.Logger
}

// NewNotificationConsumer constructs a NotificationConsumer.
func NewNotificationConsumer(notifier notify.Notifier, templates *notify.Templates, refs payouts.ReferenceReader, logger zerolog.Logger) (*NotificationConsumer, error) {
	if notifier == nil || templates == nil {
		return nil, errors.New("notification consumer: nil notifier or templates")
	}
	if refs == nil {
		return nil, payouts.ErrNilRepository
	}
	return &NotificationConsumer{
		notifier:  notifier,
		templates: templates,
		refs:      refs,
		logger:    logger.With().Str("component", "payout_notifications").Logger(),
	}, nil
}

// HandlePayoutApproved notifies admins.
func (c *NotificationConsumer) HandlePayoutApproved(ctx context.Context, event any) error {
	evt, ok := event.(PayoutApproved)
	if !ok {
		return eventbus.ErrInvalidEventType
	}
	vendor := c.vendor(ctx, evt.VendorID)
	msg, err := c.templates.Render(notify.KindPayoutApproved, notify.AudienceAdmin, notify.TemplateData{
		PeriodID:   evt.PeriodID,
		VendorName: vendor.BusinessName,
		Amount:     evt.Amount,
		Actor:      evt.ActorID,
		Notes:      evt.Notes,
	})
	if err != nil {
		return err
	}
	msg.Meta = map[string]string{"period_id": evt.PeriodID, "vendor_id": evt.VendorID}
	return c.notifier.Notify(ctx, msg)
}

// HandlePayoutPaid e-mails the vendor its remittance details.
func (c *NotificationConsumer) HandlePayoutPaid(ctx context.Context, event any) error {
	evt, ok := event.(PayoutPaid)
	if !ok {
		return eventbus.ErrInvalidEventType
	}
	vendor := c.vendor(ctx, evt.VendorID)
	if vendor.Email == "" {
		c.logger.Warn().Str("vendor_id", evt.VendorID).Msg("vendor has no e-mail, payout paid notice skipped")
		return nil
	}
	msg, err := c.templates.Render(notify.KindPayoutPaid, notify.AudienceVendor, notify.TemplateData{
		PeriodID:   evt.PeriodID,
		VendorName: vendor.BusinessName,
		Amount:     evt.Amount,
		Reference:  evt.Reference,
		Method:     evt.Method,
	})
	if err != nil {
		return err
	}
	msg.Recipients = []string{vendor.Email}
	msg.Meta = map[string]string{"period_id": evt.PeriodID, "vendor_id": evt.VendorID}
	return c.notifier.Notify(ctx, msg)
}

// HandleBulkPayoutsGenerated notifies admins with the run summary.
func (c *NotificationConsumer) HandleBulkPayoutsGenerated(ctx context.Context, event any) error {
	evt, ok := event.(BulkPayoutsGenerated)
	if !ok {
		return eventbus.ErrInvalidEventType
	}
	msg, err := c.templates.Render(notify.KindBulkPayoutsGenerated, notify.AudienceAdmin, notify.TemplateData{
		WeekStart: evt.WeekStart,
		Processed: evt.Processed,
		Total:     evt.Total,
		Actor:     evt.ActorID,
	})
	if err != nil {
		return err
	}
	return c.notifier.Notify(ctx, msg)
}

// HandlePaymentInfoRequested e-mails the vendor a request for payout details.
func (c *NotificationConsumer) HandlePaymentInfoRequested(ctx context.Context, event any) error {
	evt, ok := event.(PaymentInfoRequested)
	if !ok {
		return eventbus.ErrInvalidEventType
	}
	vendor := c.vendor(ctx, evt.VendorID)
	if vendor.Email == "" {
		c.logger.Warn().Str("vendor_id", evt.VendorID).Msg("vendor has no e-mail, payment info request skipped")
		return nil
	}
	msg, err := c.templates.Render(notify.KindPaymentInfoRequested, notify.AudienceVendor, notify.TemplateData{
		VendorName: vendor.BusinessName,
	})
	if err != nil {
		return err
	}
	msg.Recipients = []string{vendor.Email}
	msg.Meta = map[string]string{"vendor_id": evt.VendorID}
	return c.notifier.Notify(ctx, msg)
}

// vendor loads vendor details for rendering. Lookup failures fall back to the id.
func (c *NotificationConsumer) vendor(ctx context.Context, vendorID string) payouts.Vendor {
	vendor, err := c.refs.GetVendor(ctx, vendorID)
	if err != nil || vendor == nil {
		c.logger.Warn().Err(err).Str("vendor_id", vendorID).Msg("vendor lookup failed")
		return payouts.Vendor{ID: vendorID, BusinessName: vendorID}
	}
	if vendor.BusinessName == "" {
		vendor.BusinessName = vendorID
	}
	return *vendor
}

// ActivityConsumer appends ActivityRecorded events to the admin activity log.
type ActivityConsumer struct {
	logger audit.Logger
}

// NewActivityConsumer constructs an ActivityConsumer.
func NewActivityConsumer(logger audit.Logger) (*ActivityConsumer, error) {
	if logger == nil {
		return nil, errors.New("activity consumer: nil audit logger")
	}
	return &ActivityConsumer{logger: logger}, nil
}

// HandleActivityRecorded writes one audit entry.
func (c *ActivityConsumer) HandleActivityRecorded(ctx context.Context, event any) error {
	evt, ok := event.(ActivityRecorded)
	if !ok {
		return eventbus.ErrInvalidEventType
	}
	var details json.RawMessage
	if len(evt.Details) > 0 {
		raw, err := json.Marshal(evt.Details)
		if err != nil {
			return err
		}
		details = raw
	}
	return c.logger.Log(ctx, audit.Entry{
		ActorID:      evt.ActorID,
		ActorRole:    evt.ActorRole,
		Action:       evt.Action,
		ResourceType: evt.ResourceType,
		ResourceID:   evt.ResourceID,
		Details:      details,
		IP:           evt.IP,
		UserAgent:    evt.UserAgent,
		CreatedAt:    evt.OccurredAt,
	})
}
