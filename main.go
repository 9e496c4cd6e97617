package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"marketplace-payouts/internal/audit"
	"marketplace-payouts/internal/auth"
	"marketplace-payouts/internal/config"
	"marketplace-payouts/internal/eventing"
	"marketplace-payouts/internal/eventing/eventbus"
	eventingrepo "marketplace-payouts/internal/eventing/infrastructure/postgres"
	"marketplace-payouts/internal/notify"
	"marketplace-payouts/internal/observability/logging"
	"marketplace-payouts/internal/observability/metrics"
	"marketplace-payouts/internal/payouts/application"
	payoutrepo "marketplace-payouts/internal/payouts/infrastructure/postgres"
	payoutinterfaces "marketplace-payouts/internal/payouts/interfaces"
	payouthttp "marketplace-payouts/internal/payouts/interfaces/http"
	"marketplace-payouts/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.Log)
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open error")
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		logger.Fatal().Err(err).Msg("db ping error")
	}

	metrics.Init(db, logger)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry(application.Events()...)
	outboxStore := eventingrepo.NewOutboxStore(db, eventingrepo.WithMaxAttempts(cfg.OutboxMaxAttempts))
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore, logger)
	publisher := eventing.NewPublisher(outboxStore, baseBus, logger)

	service, err := application.NewPayoutService(
		payoutrepo.NewLineItemRepository(db),
		payoutrepo.NewReferenceReader(db),
		payoutrepo.NewPeriodRepository(db),
		payoutrepo.NewCalculator(db),
		application.WithPublisher(payoutinterfaces.NewOutboxPublisher(publisher, logger)),
		application.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("payout service error")
	}

	if err := wireConsumers(cfg, db, baseBus, processedStore, logger); err != nil {
		logger.Fatal().Err(err).Msg("consumer wiring error")
	}

	handler, err := payouthttp.NewHandler(service, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payout handler error")
	}

	limiter, err := ratelimit.New(cfg.RateLimit, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limiter error")
	}
	defer func() {
		if err := limiter.Close(); err != nil {
			logger.Warn().Err(err).Msg("rate limiter close error")
		}
	}()

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           logging.AccessLog(logger, authMiddleware.Wrap(limiter.Wrap(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx, cfg.OutboxInterval, cfg.OutboxBatch)

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("payouts api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}

// wireConsumers subscribes notification and activity consumers to the bus.
func wireConsumers(cfg config.Config, db *sql.DB, bus eventbus.EventBus, processed eventing.ProcessedStore, logger zerolog.Logger) error {
	var channels []notify.Channel
	if cfg.Notify.WebhookURL != "" {
		webhook, err := notify.NewWebhookChannel(
			cfg.Notify.WebhookURL,
			notify.WithSigningSecret(cfg.Notify.WebhookSecret),
			notify.WithTimeout(cfg.Notify.WebhookTimeout),
		)
		if err != nil {
			return err
		}
		channels = append(channels, webhook)
	}
	if smtp, ok := cfg.Notify.SMTP(); ok {
		email, err := notify.NewEmailChannel(smtp)
		if err != nil {
			return err
		}
		channels = append(channels, email)
	}
	if len(channels) == 0 {
		logger.Warn().Msg("no notification channels configured")
	}

	templates, err := notify.NewTemplates(cfg.Notify.Templates)
	if err != nil {
		return err
	}
	notifications, err := application.NewNotificationConsumer(
		notify.NewMultiNotifier(logger, channels...),
		templates,
		payoutrepo.NewReferenceReader(db),
		logger,
	)
	if err != nil {
		return err
	}
	activity, err := application.NewActivityConsumer(audit.NewRepository(db))
	if err != nil {
		return err
	}
	application.WirePayoutConsumers(bus, notifications, activity, processed)
	return nil
}
