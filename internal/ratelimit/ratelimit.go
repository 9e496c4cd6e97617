package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"marketplace-payouts/internal/audit"
	"marketplace-payouts/internal/auth"
	"marketplace-payouts/internal/observability/metrics"
)

// Config selects the mutation rate and the backing store.
type Config struct {
	// Rate is "<limit>-<n><s|m|h>", e.g. "30-1m", or the limiter's native "30-M".
	Rate     string
	RedisURL string
	Prefix   string
}

// Limiter throttles payout mutations per staff user.
type Limiter struct {
	middleware *stdlibmw.Middleware
	redis      *redis.Client
	logger     zerolog.Logger
}

// New builds a Limiter. An empty RedisURL keeps counters in process memory.
func New(cfg Config, logger zerolog.Logger) (*Limiter, error) {
	rate, err := ParseRate(cfg.Rate)
	if err != nil {
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "payouts_rate_limiter"
	}

	l := &Limiter{logger: logger.With().Str("component", "ratelimit").Logger()}
	var store limiter.Store
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
		}
		l.redis = redis.NewClient(opt)
		store, err = redisstore.NewStoreWithOptions(l.redis, limiter.StoreOptions{
			Prefix:          prefix,
			MaxRetry:        3,
			CleanUpInterval: rate.Period,
		})
		if err != nil {
			_ = l.redis.Close()
			return nil, fmt.Errorf("ratelimit: redis store: %w", err)
		}
	} else {
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          prefix,
			CleanUpInterval: rate.Period,
		})
	}

	l.middleware = stdlibmw.NewMiddleware(
		limiter.New(store, rate),
		stdlibmw.WithKeyGetter(keyFor),
		stdlibmw.WithLimitReachedHandler(l.limitReached),
		stdlibmw.WithErrorHandler(l.storeFailed),
	)
	return l, nil
}

// Wrap throttles mutating requests. Reads pass through.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	if l == nil || l.middleware == nil {
		return next
	}
	limited := l.middleware.Handler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// Close releases the redis client, if any.
func (l *Limiter) Close() error {
	if l == nil || l.redis == nil {
		return nil
	}
	return l.redis.Close()
}

func keyFor(r *http.Request) string {
	if subject := auth.SubjectFromContext(r.Context()); subject != "" {
		return "staff:" + subject
	}
	return "ip:" + audit.ClientIP(r)
}

func (l *Limiter) limitReached(w http.ResponseWriter, r *http.Request) {
	metrics.IncRateLimited(r.Method)
	l.logger.Warn().Str("key", keyFor(r)).Str("path", r.URL.Path).Msg("rate limit reached")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": "Too many requests",
		"errors":  map[string]string{"rate_limit": "retry after the current window"},
		"data":    nil,
	})
}

// storeFailed lets the request through when the counter store is unavailable.
func (l *Limiter) storeFailed(w http.ResponseWriter, r *http.Request, err error) {
	l.logger.Error().Err(err).Str("path", r.URL.Path).Msg("rate limit store failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": "Internal error", "errors": nil, "data": nil})
}

// ParseRate accepts "10-2m", "5-1h", "20-10s" and the limiter's own "10-M" style.
func ParseRate(value string) (limiter.Rate, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return limiter.Rate{}, fmt.Errorf("ratelimit: invalid rate format %q", value)
	}
	limit, err := strconv.Atoi(parts[0])
	if err != nil || limit <= 0 {
		return limiter.Rate{}, fmt.Errorf("ratelimit: invalid limit %q", parts[0])
	}

	unit := parts[1]
	if len(unit) == 1 && strings.ToUpper(unit) == unit {
		return limiter.NewRateFromFormatted(value)
	}
	var base time.Duration
	switch {
	case strings.HasSuffix(unit, "s"):
		base = time.Second
	case strings.HasSuffix(unit, "m"):
		base = time.Minute
	case strings.HasSuffix(unit, "h"):
		base = time.Hour
	default:
		return limiter.Rate{}, fmt.Errorf("ratelimit: unsupported period %q", unit)
	}
	n, err := strconv.Atoi(unit[:len(unit)-1])
	if err != nil || n <= 0 {
		return limiter.Rate{}, fmt.Errorf("ratelimit: invalid period %q", unit)
	}
	return limiter.Rate{Formatted: value, Period: time.Duration(n) * base, Limit: int64(limit)}, nil
}
