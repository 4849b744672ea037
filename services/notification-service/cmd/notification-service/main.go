package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/config"
	"github.com/salonpanel/salonpanel/libs/db"
	"github.com/salonpanel/salonpanel/libs/grpcx"
	"github.com/salonpanel/salonpanel/libs/httpx"
	"github.com/salonpanel/salonpanel/libs/kafkax"
	otelx "github.com/salonpanel/salonpanel/libs/otel"
	"github.com/salonpanel/salonpanel/libs/outbox"
	"github.com/salonpanel/salonpanel/libs/runtime"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/alerts"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/consumer"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/handlers"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/inbox"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/reminders"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/sms"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	ServiceName      string        `envconfig:"SERVICE_NAME" default:"notification-service"`
	Port             config.Port   `envconfig:"PORT" default:"8085"`
	GRPCPort         config.Port   `envconfig:"GRPC_PORT"`
	DatabaseURL      string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBLogQueries     bool          `envconfig:"DB_LOG_QUERIES" default:"false"`
	KafkaBrokers     string        `envconfig:"KAFKA_BROKERS"`
	KafkaGroupID     string        `envconfig:"KAFKA_GROUP_ID" default:"notification-service"`
	KafkaTopic       string        `envconfig:"KAFKA_CONSUME_TOPIC" default:"booking.appointment.booked.v1"`
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	JWTSecret        string        `envconfig:"JWT_SECRET"`
	JWKSURL          string        `envconfig:"JWKS_URL"`
	RateLimit        int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	CORSOrigins      string        `envconfig:"CORS_ALLOWED_ORIGINS"`
	Timezone         string        `envconfig:"TIMEZONE" default:"Europe/Istanbul"`
	ReminderInterval time.Duration `envconfig:"REMINDER_SCAN_INTERVAL" default:"60s"`
	RemindersEnabled bool          `envconfig:"REMINDERS_ENABLED" default:"true"`
	SMSProvider      string        `envconfig:"SMS_PROVIDER" default:"noop"`
	SMSWebhookURL    string        `envconfig:"SMS_WEBHOOK_URL"`
	SMSWebhookToken  string        `envconfig:"SMS_WEBHOOK_TOKEN"`
	TwilioSID        string        `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioToken      string        `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string        `envconfig:"TWILIO_PHONE_NUMBER"`
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid TIMEZONE", "timezone", cfg.Timezone, "err", err)
		os.Exit(1)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:        cfg.DBMaxConns,
		Logger:          logger,
		LogQueries:      cfg.DBLogQueries,
		ConnectAttempts: 5,
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	sender, err := sms.New(sms.Config{
		Provider:     cfg.SMSProvider,
		WebhookURL:   cfg.SMSWebhookURL,
		WebhookToken: cfg.SMSWebhookToken,
		TwilioSID:    cfg.TwilioSID,
		TwilioToken:  cfg.TwilioToken,
		TwilioFrom:   cfg.TwilioFrom,
	})
	if err != nil {
		logger.Error("sms provider init failed", "err", err)
		os.Exit(1)
	}
	logger.Info("sms provider selected", "provider", sender.ProviderID())

	repo := storage.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outbox.NewRepository(), logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	dispatcher := reminders.NewDispatcher(repo, sender, logger, reminders.Config{
		Interval: cfg.ReminderInterval,
		Location: loc,
	})
	if cfg.RemindersEnabled {
		if err := dispatcher.Start(ctx); err != nil {
			logger.Error("reminder dispatcher start failed", "err", err)
			os.Exit(1)
		}
		defer dispatcher.Stop()
	}

	if cfg.KafkaBrokers != "" {
		alerter := alerts.NewAlerter(repo, sender, logger)
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.KafkaTopic,
		}, alerter.Handle)
		go eventConsumer.Run(ctx)
	}

	var keys auth.KeySource
	if cfg.JWKSURL != "" {
		keys = auth.NewJWKSClient(cfg.JWKSURL, 10*time.Minute)
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, keys)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	api := chi.NewRouter()
	api.Use(auth.RequireAuth(verifier, logger))
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		api.Use(httpx.WithRateLimit(httpx.NewRedisLimiter(rdb, cfg.RateLimit, time.Minute, "notification"), auth.RateLimitKey, logger, true))
	} else {
		api.Use(httpx.WithRateLimit(httpx.NewMemoryLimiter(cfg.RateLimit, time.Minute), auth.RateLimitKey, logger, true))
	}
	handlers.NewNotificationHandler(dispatcher, repo, logger).Mount(api)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/", api)

	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger, "/healthz", "/readyz"),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: httpx.SplitList(cfg.CORSOrigins),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{httpx.RequestIDHeader, "Retry-After"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(64<<10),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              cfg.Port.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.GRPCPort != "" {
		grpcSrv := grpcx.NewServer(logger)
		health := grpcx.RegisterHealth(grpcSrv, logger, 10*time.Second, checks...)
		if err := grpcx.Serve(ctx, logger, grpcSrv, health, string(cfg.GRPCPort)); err != nil {
			logger.Error("grpc listen failed", "err", err)
		}
	}

	runtime.ServeHTTP(ctx, logger, srv)
}
