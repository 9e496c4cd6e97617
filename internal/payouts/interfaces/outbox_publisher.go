package interfaces

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"

	"marketplace-payouts/internal/eventing"
)

// OutboxPublisher writes payout events to the outbox. Without an outbox it only logs them.
type OutboxPublisher struct {
	publisher *eventing.Publisher
	logger    zerolog.Logger
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher, logger zerolog.Logger) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher, logger: logger}
}

// Publish writes event to the outbox.
func (p *OutboxPublisher) Publish(ctx context.Context, event any) error {
	if p == nil {
		return nil
	}
	if p.publisher == nil {
		p.logger.Info().Str("event_type", reflect.TypeOf(event).String()).Msg("outbox disabled, event dropped")
		return nil
	}
	return p.publisher.Publish(ctx, event)
}
