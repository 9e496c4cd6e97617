package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"marketplace-payouts/internal/observability/metrics"
)

// MultiNotifier fans a message out to every channel that accepts its audience.
type MultiNotifier struct {
	channels []Channel
	logger   zerolog.Logger
}

// NewMultiNotifier constructs a MultiNotifier. Nil channels are dropped.
func NewMultiNotifier(logger zerolog.Logger, channels ...Channel) *MultiNotifier {
	kept := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			kept = append(kept, ch)
		}
	}
	return &MultiNotifier{channels: kept, logger: logger}
}

// Notify sends msg on all matching channels and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, msg Message) error {
	if m == nil {
		return nil
	}
	var errs []error
	delivered := 0
	for _, ch := range m.channels {
		if !ch.Accepts(msg.Audience) {
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			metrics.IncNotification(ch.Name(), metrics.ResultError)
			m.logger.Warn().Err(err).
				Str("channel", ch.Name()).
				Str("kind", msg.Kind).
				Msg("notification failed")
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		metrics.IncNotification(ch.Name(), metrics.ResultSuccess)
		delivered++
	}
	if delivered == 0 && len(errs) == 0 {
		m.logger.Debug().Str("kind", msg.Kind).Str("audience", string(msg.Audience)).Msg("no channel for notification")
	}
	return errors.Join(errs...)
}
