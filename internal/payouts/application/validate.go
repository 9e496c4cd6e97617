package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketplace-payouts/internal/auth"
	"marketplace-payouts/internal/observability/metrics"
	payouts "marketplace-payouts/internal/payouts/domain"
)

// DateLayout is the accepted week start format.
const DateLayout = "2006-01-02"

func checkUUID(verr *payouts.ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		verr.Add(field, "is required")
		return ""
	}
	if _, err := uuid.Parse(value); err != nil {
		verr.Add(field, "must be a valid UUID")
		return ""
	}
	return value
}

func checkDate(verr *payouts.ValidationError, field, value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		verr.Add(field, "is required")
		return time.Time{}
	}
	day, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		verr.Add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}
	}
	return day
}

func validationErr(verr *payouts.ValidationError) error {
	if verr.Empty() {
		return nil
	}
	return verr
}

func indexed(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}

// resultFor maps an operation error to a metrics result label.
func resultFor(err error) string {
	if err == nil {
		return metrics.ResultSuccess
	}
	var validation *payouts.ValidationError
	var conflict *payouts.StateConflictError
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrForbidden),
		errors.Is(err, payouts.ErrNotFound), errors.As(err, &validation):
		return metrics.ResultRejected
	case errors.As(err, &conflict):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
