package eventing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketplace-payouts/internal/eventing"
	"marketplace-payouts/internal/eventing/eventbus"
	"marketplace-payouts/internal/eventing/infrastructure/memory"
)

type periodClosed struct {
	PeriodID   string    `json:"period_id"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newHarness() (*eventbus.InMemoryBus, *memory.Store, *eventing.Dispatcher, *eventing.Publisher) {
	bus := eventbus.NewInMemoryBus()
	store := memory.NewStore()
	registry := eventing.NewRegistry(periodClosed{})
	dispatcher := eventing.NewDispatcher(bus, store, registry, store, zerolog.Nop())
	publisher := eventing.NewPublisher(store, bus, zerolog.Nop())
	return bus, store, dispatcher, publisher
}

func TestBuildEnvelope_ExtractsMetadata(t *testing.T) {
	occurred := time.Date(2026, time.March, 9, 8, 0, 0, 0, time.UTC)
	ctx := eventing.WithCorrelationID(context.Background(), "req-1")
	env, err := eventing.BuildEnvelope(periodClosed{PeriodID: "p-1", ActorID: "staff-1", OccurredAt: occurred}, eventing.MetaFromContext(ctx))
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.ResourceID != "p-1" || env.ActorID != "staff-1" {
		t.Fatalf("unexpected metadata: %+v", env)
	}
	if env.CorrelationID != "req-1" || !env.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected correlation or time: %+v", env)
	}
	if env.EventType != eventbus.EventTypeOf[periodClosed]() {
		t.Fatalf("unexpected event type %s", env.EventType)
	}
}

func TestDispatcher_DeliversOnce(t *testing.T) {
	bus, store, dispatcher, publisher := newHarness()
	ctx := context.Background()

	var received []periodClosed
	eventing.Subscribe(bus, eventbus.EventTypeOf[periodClosed](), "consumer-a", func(ctx context.Context, event any) error {
		evt, ok := event.(periodClosed)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		received = append(received, evt)
		return nil
	}, store)

	if err := publisher.Publish(ctx, periodClosed{PeriodID: "p-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	result, err := dispatcher.Dispatch(ctx, 10)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Sent != 1 || len(received) != 1 || received[0].PeriodID != "p-1" {
		t.Fatalf("unexpected delivery: %+v %+v", result, received)
	}

	result, err = dispatcher.Dispatch(ctx, 10)
	if err != nil || result.Claimed != 0 {
		t.Fatalf("expected nothing pending, got %+v %v", result, err)
	}
}

func TestDispatcher_IdempotentConsumer(t *testing.T) {
	bus, store, dispatcher, _ := newHarness()
	ctx := context.Background()

	count := 0
	eventing.Subscribe(bus, eventbus.EventTypeOf[periodClosed](), "consumer-a", func(context.Context, any) error {
		count++
		return nil
	}, store)

	env, err := eventing.BuildEnvelope(periodClosed{PeriodID: "p-2"}, eventing.Meta{EventID: "evt-dup-001"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := store.Insert(ctx, env); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := dispatcher.Dispatch(ctx, 10); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected handler once, got %d", count)
	}
}

func TestDispatcher_DeadLettersFailures(t *testing.T) {
	bus, store, dispatcher, publisher := newHarness()
	ctx := context.Background()

	eventing.Subscribe(bus, eventbus.EventTypeOf[periodClosed](), "consumer-fail", func(context.Context, any) error {
		return errors.New("boom")
	}, store)

	if err := publisher.Publish(ctx, periodClosed{PeriodID: "p-3"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	result, _ := dispatcher.Dispatch(ctx, 10)
	if result.Failed != 1 || result.DLQ != 1 {
		t.Fatalf("expected one failure in dlq, got %+v", result)
	}
	envs := store.Envelopes()
	if got := store.DeadLetters()[envs[0].EventID]; got != "boom" {
		t.Fatalf("unexpected dlq message %q", got)
	}
}

func TestDispatcher_UnknownTypeGoesToDLQ(t *testing.T) {
	_, store, dispatcher, _ := newHarness()
	ctx := context.Background()

	if _, err := store.Insert(ctx, eventing.Envelope{EventID: "evt-x", EventType: "unknown.Type", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	result, _ := dispatcher.Dispatch(ctx, 10)
	if result.Failed != 1 {
		t.Fatalf("expected failure, got %+v", result)
	}
	if _, ok := store.DeadLetters()["evt-x"]; !ok {
		t.Fatalf("expected dlq record")
	}
}
