package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"marketplace-payouts/internal/eventing"
)

// Store is an in-memory outbox, processed-events and dead-letter store.
type Store struct {
	mu        sync.Mutex
	records   []outboxRow
	processed map[string]struct{}
	dlq       map[string]string
}

type outboxRow struct {
	id       string
	env      eventing.Envelope
	status   string
	attempts int
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{processed: make(map[string]struct{}), dlq: make(map[string]string)}
}

// Insert appends a pending record.
func (s *Store) Insert(_ context.Context, env eventing.Envelope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.records = append(s.records, outboxRow{id: id, env: env, status: "pending"})
	return id, nil
}

// ListPending returns records not yet sent.
func (s *Store) ListPending(_ context.Context, limit int) ([]eventing.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []eventing.OutboxRecord
	for _, row := range s.records {
		if row.status != "pending" {
			continue
		}
		result = append(result, eventing.OutboxRecord{ID: row.id, Envelope: row.env})
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// MarkSent marks a record sent.
func (s *Store) MarkSent(_ context.Context, id string) error {
	s.setStatus(id, "sent")
	return nil
}

// MarkFailed marks a record failed.
func (s *Store) MarkFailed(_ context.Context, id string) error {
	s.setStatus(id, "failed")
	return nil
}

func (s *Store) setStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].id == id {
			s.records[i].status = status
			if status == "failed" {
				s.records[i].attempts++
			}
		}
	}
}

// HasProcessed reports whether a consumer already handled an event.
func (s *Store) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[eventID+"|"+consumerName]
	return ok, nil
}

// MarkProcessed records a handled event.
func (s *Store) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[eventID+"|"+consumerName] = struct{}{}
	return nil
}

// RecordFailure stores the failure message for an event.
func (s *Store) RecordFailure(_ context.Context, env eventing.Envelope, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := ""
	if err != nil {
		message = err.Error()
	}
	s.dlq[env.EventID] = message
	return nil
}

// Envelopes returns every envelope written, in insertion order.
func (s *Store) Envelopes() []eventing.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]eventing.Envelope, 0, len(s.records))
	for _, row := range s.records {
		result = append(result, row.env)
	}
	return result
}

// Status returns the delivery status of an outbox record.
func (s *Store) Status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.records {
		if row.id == id {
			return row.status
		}
	}
	return ""
}

// DeadLetters returns a copy of recorded failures keyed by event id.
func (s *Store) DeadLetters() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]string, len(s.dlq))
	for k, v := range s.dlq {
		result[k] = v
	}
	return result
}
