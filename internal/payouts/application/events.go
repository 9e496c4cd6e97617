package application

import "time"

// PayoutApproved is emitted after a draft period is approved.
type PayoutApproved struct {
	PeriodID   string    `json:"period_id"`
	VendorID   string    `json:"vendor_id"`
	Amount     float64   `json:"amount"`
	Notes      string    `json:"notes,omitempty"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PayoutPaid is emitted after an approved period is marked paid.
type PayoutPaid struct {
	PeriodID   string    `json:"period_id"`
	VendorID   string    `json:"vendor_id"`
	Amount     float64   `json:"amount"`
	Reference  string    `json:"reference"`
	Method     string    `json:"method"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BulkPayoutsGenerated summarizes a bulk run.
type BulkPayoutsGenerated struct {
	WeekStart  string    `json:"week_start"`
	Processed  int       `json:"processed"`
	Total      int       `json:"total"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentInfoRequested asks a vendor to provide payout details.
type PaymentInfoRequested struct {
	VendorID       string    `json:"vendor_id"`
	HasPaymentInfo bool      `json:"has_payment_info"`
	ActorID        string    `json:"actor_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ActivityRecorded is written to the admin activity log by a consumer.
type ActivityRecorded struct {
	ActorID      string         `json:"actor_id"`
	ActorRole    string         `json:"actor_role"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Events lists every event type the service emits, for registry setup.
func Events() []any {
	return []any{
		PayoutApproved{},
		PayoutPaid{},
		BulkPayoutsGenerated{},
		PaymentInfoRequested{},
		ActivityRecorded{},
	}
}
