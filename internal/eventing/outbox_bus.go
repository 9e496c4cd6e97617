package eventing

import (
	"context"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"marketplace-payouts/internal/eventing/eventbus"
	"marketplace-payouts/internal/observability/metrics"
)

// Publisher writes events to the outbox. Delivery happens later through the Dispatcher.
type Publisher struct {
	outbox OutboxWriter
	sub    Subscriber
	logger zerolog.Logger
}

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// Subscriber registers handlers.
type Subscriber interface {
	Subscribe(eventType string, handler eventbus.EventHandler)
}

// NewPublisher constructs a publisher.
func NewPublisher(outbox OutboxWriter, sub Subscriber, logger zerolog.Logger) *Publisher {
	return &Publisher{outbox: outbox, sub: sub, logger: logger}
}

// Publish writes the event to the outbox.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	start := time.Now()
	result := metrics.ResultSuccess
	if p == nil || p.outbox == nil {
		metrics.ObserveOutboxPublish(result, time.Since(start))
		return nil
	}
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		metrics.ObserveOutboxPublish(metrics.ResultError, time.Since(start))
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		metrics.ObserveOutboxPublish(metrics.ResultError, time.Since(start))
		return err
	}
	duration := time.Since(start)
	metrics.ObserveOutboxPublish(result, duration)
	if duration > 50*time.Millisecond {
		p.logger.Warn().
			Int64("duration_ms", duration.Milliseconds()).
			Str("event_type", reflect.TypeOf(event).String()).
			Msg("slow outbox publish")
	}
	return nil
}

// Subscribe delegates to the underlying subscriber when available.
func (p *Publisher) Subscribe(eventType string, handler eventbus.EventHandler) {
	if p == nil || p.sub == nil {
		return
	}
	p.sub.Subscribe(eventType, handler)
}
