package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"marketplace-payouts/internal/eventing"
)

// DLQStore keeps envelopes whose delivery failed.
type DLQStore struct {
	db *sql.DB
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore(db *sql.DB) *DLQStore {
	return &DLQStore{db: db}
}

// RecordFailure inserts a DLQ record or bumps its attempt counter.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	if env.EventID == "" {
		return errors.New("dlq store: empty event id")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO dead_letter_events (event_id, event_type, payload, error, first_seen_at, last_seen_at, attempts)
VALUES ($1, $2, $3, $4, $5, $5, 1)
ON CONFLICT (event_id)
DO UPDATE SET
	payload = EXCLUDED.payload,
	error = EXCLUDED.error,
	last_seen_at = EXCLUDED.last_seen_at,
	attempts = dead_letter_events.attempts + 1`, env.EventID, env.EventType, payload, message, time.Now().UTC())
	return err
}
