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
	"github.com/salonpanel/salonpanel/services/booking-service/internal/booking"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/grouping"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/handlers"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	ServiceName     string      `envconfig:"SERVICE_NAME" default:"booking-service"`
	Port            config.Port `envconfig:"PORT" default:"8083"`
	GRPCPort        config.Port `envconfig:"GRPC_PORT"`
	DatabaseURL     string      `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns      int32       `envconfig:"DB_MAX_CONNS" default:"10"`
	DBLogQueries    bool        `envconfig:"DB_LOG_QUERIES" default:"false"`
	AutoMigrate     bool        `envconfig:"AUTO_MIGRATE" default:"false"`
	KafkaBrokers    string      `envconfig:"KAFKA_BROKERS"`
	RedisAddr       string      `envconfig:"REDIS_ADDR"`
	JWTSecret       string      `envconfig:"JWT_SECRET"`
	JWKSURL         string      `envconfig:"JWKS_URL"`
	RateLimit       int         `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	CORSOrigins     string      `envconfig:"CORS_ALLOWED_ORIGINS"`
	SlotStepMinutes int         `envconfig:"SLOT_STEP_MINUTES" default:"30"`
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName)

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

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("migration failed", "err", err)
			panic(err)
		}
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

	outboxPublisher := outbox.NewPublisher(pool, outbox.NewRepository(), logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	svc := booking.NewService(storage.NewRepository(pool), grouping.NewPlanner(nil), logger, booking.Config{
		SlotStepMinutes: cfg.SlotStepMinutes,
	})
	bookingHandler := handlers.NewBookingHandler(svc, logger)

	var keys auth.KeySource
	if cfg.JWKSURL != "" {
		keys = auth.NewJWKSClient(cfg.JWKSURL, 10*time.Minute)
	}
	if cfg.JWTSecret == "" && keys == nil {
		logger.Warn("neither JWT_SECRET nor JWKS_URL is set; every API request will be rejected")
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
		api.Use(httpx.WithRateLimit(httpx.NewRedisLimiter(rdb, cfg.RateLimit, time.Minute, "booking"), auth.RateLimitKey, logger, true))
	} else {
		api.Use(httpx.WithRateLimit(httpx.NewMemoryLimiter(cfg.RateLimit, time.Minute), auth.RateLimitKey, logger, true))
	}
	bookingHandler.Mount(api)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/", api)

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger, "/healthz", "/readyz"),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: httpx.SplitList(cfg.CORSOrigins),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders: []string{httpx.RequestIDHeader, "Retry-After"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              cfg.Port.Addr(),
		Handler:           httpHandler,
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
