package application

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"marketplace-payouts/internal/audit"
	"marketplace-payouts/internal/auth"
	"marketplace-payouts/internal/observability/metrics"
	payouts "marketplace-payouts/internal/payouts/domain"
)

// EventPublisher enqueues side-effect events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MutationResult is the outcome of a successful mutation.
type MutationResult struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// PayoutService runs the payout settlement workflows.
type PayoutService struct {
	items     payouts.LineItemRepository
	refs      payouts.ReferenceReader
	periods   payouts.PeriodRepository
	calc      payouts.Calculator
	publisher EventPublisher
	clock     Clock
	logger    zerolog.Logger
}

// Option configures the service.
type Option func(*PayoutService)

// WithPublisher sets the side-effect publisher. Without one, events are dropped.
func WithPublisher(publisher EventPublisher) Option {
	return func(s *PayoutService) {
		s.publisher = publisher
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *PayoutService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *PayoutService) {
		s.logger = logger
	}
}

// NewPayoutService constructs a PayoutService.
func NewPayoutService(items payouts.LineItemRepository, refs payouts.ReferenceReader, periods payouts.PeriodRepository, calc payouts.Calculator, opts ...Option) (*PayoutService, error) {
	if items == nil || refs == nil || periods == nil {
		return nil, payouts.ErrNilRepository
	}
	if calc == nil {
		return nil, errors.New("payout service: nil calculator")
	}
	s := &PayoutService{
		items:   items,
		refs:    refs,
		periods: periods,
		calc:    calc,
		clock:   systemClock{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveOperation(operation, resultFor(*err), time.Since(start))
}

// emit publishes best-effort. Failures are logged and never returned.
func (s *PayoutService) emit(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Type("event", event).Msg("side effect enqueue failed")
	}
}

func (s *PayoutService) recordActivity(ctx context.Context, role auth.Role, action, resourceType, resourceID string, details map[string]any) {
	req := audit.RequestFromContext(ctx)
	if email := auth.EmailFromContext(ctx); email != "" {
		merged := make(map[string]any, len(details)+1)
		for k, v := range details {
			merged[k] = v
		}
		merged["actor_email"] = email
		details = merged
	}
	s.emit(ctx, ActivityRecorded{
		ActorID:      auth.SubjectFromContext(ctx),
		ActorRole:    string(role),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		OccurredAt:   s.clock.Now(),
	})
}

// transitionConflict explains why a conditional update changed nothing.
func (s *PayoutService) transitionConflict(ctx context.Context, periodID, action string) error {
	period, err := s.periods.GetPeriod(ctx, periodID)
	if err != nil {
		return payouts.Downstream("load payout period", err)
	}
	return &payouts.StateConflictError{
		Resource: "payout period",
		ID:       periodID,
		Action:   action,
		Current:  period.Status,
	}
}
