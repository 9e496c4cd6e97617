package application

import (
	"marketplace-payouts/internal/eventing"
	"marketplace-payouts/internal/eventing/eventbus"
)

// WirePayoutConsumers registers the side-effect consumers on the bus.
// Each consumer is idempotent per event id when processed is set.
func WirePayoutConsumers(bus eventbus.EventBus, notifications *NotificationConsumer, activity *ActivityConsumer, processed eventing.ProcessedStore) {
	if bus == nil {
		return
	}
	if notifications != nil {
		eventing.Subscribe(bus, eventbus.EventTypeOf[PayoutApproved](), "payouts.notify.approved", notifications.HandlePayoutApproved, processed)
		eventing.Subscribe(bus, eventbus.EventTypeOf[PayoutPaid](), "payouts.notify.paid", notifications.HandlePayoutPaid, processed)
		eventing.Subscribe(bus, eventbus.EventTypeOf[BulkPayoutsGenerated](), "payouts.notify.bulk", notifications.HandleBulkPayoutsGenerated, processed)
		eventing.Subscribe(bus, eventbus.EventTypeOf[PaymentInfoRequested](), "payouts.notify.payment_info", notifications.HandlePaymentInfoRequested, processed)
	}
	if activity != nil {
		eventing.Subscribe(bus, eventbus.EventTypeOf[ActivityRecorded](), "payouts.activity", activity.HandleActivityRecorded, processed)
	}
}
