package eventing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"marketplace-payouts/internal/observability/metrics"
)

// Dispatcher sends outbox events to the in-process bus.
type Dispatcher struct {
	bus      EventBus
	outbox   OutboxStore
	registry *Registry
	dlq      DLQStore
	logger   zerolog.Logger
}

// EventBus is the minimal publish interface.
type EventBus interface {
	Publish(ctx context.Context, event any) error
}

// OutboxStore provides access to outbox records.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// DLQStore records failures.
type DLQStore interface {
	RecordFailure(ctx context.Context, env Envelope, err error) error
}

// OutboxRecord represents a pending outbox entry.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
}

// DispatchResult captures the outcome of a dispatch run.
type DispatchResult struct {
	Requested int
	Claimed   int
	Sent      int
	Failed    int
	DLQ       int
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(bus EventBus, outbox OutboxStore, registry *Registry, dlq DLQStore, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		outbox:   outbox,
		registry: registry,
		dlq:      dlq,
		logger:   logger.With().Str("component", "outbox_dispatcher").Logger(),
	}
}

// Dispatch pulls pending outbox messages and delivers them.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) (DispatchResult, error) {
	start := time.Now()
	result := DispatchResult{Requested: limit}
	if d == nil || d.outbox == nil || d.bus == nil || d.registry == nil {
		metrics.ObserveOutboxDispatch(metrics.ResultError, time.Since(start), 0, 0, 0)
		return result, nil
	}
	if limit <= 0 {
		limit = 50
		result.Requested = limit
	}
	records, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		metrics.ObserveOutboxDispatch(metrics.ResultError, time.Since(start), 0, 0, 0)
		return result, err
	}
	result.Claimed = len(records)
	if result.Claimed == 0 {
		metrics.ObserveOutboxDispatch(metrics.ResultSuccess, time.Since(start), 0, 0, 0)
		return result, nil
	}
	var firstErr error

	for _, record := range records {
		env := record.Envelope
		payload, err := d.registry.DecodePayload(env)
		if err == nil {
			err = d.bus.Publish(WithEnvelope(ctx, env), payload)
		}
		if err != nil {
			d.logger.Warn().Err(err).
				Str("event_id", env.EventID).
				Str("event_type", env.EventType).
				Msg("outbox delivery failed")
			if markErr := d.outbox.MarkFailed(ctx, record.ID); markErr != nil && firstErr == nil {
				firstErr = markErr
			}
			if d.dlq != nil {
				if dlqErr := d.dlq.RecordFailure(ctx, env, err); dlqErr == nil {
					result.DLQ++
				}
			}
			result.Failed++
			continue
		}

		if err := d.outbox.MarkSent(ctx, record.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			result.Failed++
			continue
		}
		result.Sent++
	}
	dispatchResult := metrics.ResultSuccess
	if firstErr != nil || result.Failed > 0 {
		dispatchResult = metrics.ResultError
	}
	metrics.ObserveOutboxDispatch(dispatchResult, time.Since(start), result.Sent, result.Failed, result.DLQ)
	return result, firstErr
}

// Run dispatches on every tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration, batch int) {
	if d == nil {
		return
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := d.Dispatch(ctx, batch)
			if err != nil {
				d.logger.Error().Err(err).Msg("outbox dispatch error")
				continue
			}
			if result.Claimed > 0 {
				d.logger.Debug().
					Int("sent", result.Sent).
					Int("failed", result.Failed).
					Int("dlq", result.DLQ).
					Msg("outbox dispatched")
			}
		}
	}
}
