package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"marketplace-payouts/internal/eventing"
	"marketplace-payouts/internal/eventing/eventbus"
	eventingrepo "marketplace-payouts/internal/eventing/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type vendorNotified struct {
	VendorID string `json:"vendor_id"`
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if !tableExists(db, "event_outbox") ||
		!tableExists(db, "processed_events") ||
		!tableExists(db, "dead_letter_events") {
		db.Close()
		t.Skip("missing tables; run migrations")
	}
	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM processed_events")
	_, _ = db.ExecContext(ctx, "DELETE FROM dead_letter_events")
	_, _ = db.ExecContext(ctx, "DELETE FROM event_outbox")
	return db
}

func TestEventing_IdempotentConsumer(t *testing.T) {
	db := openDB(t)
	defer db.Close()
	ctx := context.Background()

	bus := eventbus.NewInMemoryBus()
	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, eventing.NewRegistry(vendorNotified{}), eventingrepo.NewDLQStore(db), zerolog.Nop())

	count := 0
	eventing.Subscribe(bus, eventbus.EventTypeOf[vendorNotified](), "consumer-a", func(context.Context, any) error {
		count++
		return nil
	}, processedStore)

	env, err := eventing.BuildEnvelope(vendorNotified{VendorID: "v-1"}, eventing.Meta{EventID: eventing.NewEventID()})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := outboxStore.Insert(ctx, env); err != nil {
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

func TestEventing_DLQOnFailure(t *testing.T) {
	db := openDB(t)
	defer db.Close()
	ctx := context.Background()

	bus := eventbus.NewInMemoryBus()
	outboxStore := eventingrepo.NewOutboxStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, eventing.NewRegistry(vendorNotified{}), eventingrepo.NewDLQStore(db), zerolog.Nop())
	publisher := eventing.NewPublisher(outboxStore, bus, zerolog.Nop())

	eventing.Subscribe(bus, eventbus.EventTypeOf[vendorNotified](), "consumer-fail", func(context.Context, any) error {
		return errors.New("boom")
	}, eventingrepo.NewProcessedStore(db))

	if err := publisher.Publish(ctx, vendorNotified{VendorID: "v-2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	_, _ = dispatcher.Dispatch(ctx, 10)

	var dlqCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letter_events").Scan(&dlqCount); err != nil {
		t.Fatalf("count dlq: %v", err)
	}
	if dlqCount != 1 {
		t.Fatalf("expected 1 dlq record, got %d", dlqCount)
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
