package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/config"
	"github.com/salonpanel/salonpanel/libs/httpx"
	otelx "github.com/salonpanel/salonpanel/libs/otel"
	"github.com/salonpanel/salonpanel/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	ServiceName       string        `envconfig:"SERVICE_NAME" default:"gateway-service"`
	Port              config.Port   `envconfig:"PORT" default:"8080"`
	BookingURL        string        `envconfig:"BOOKING_URL" default:"http://booking-service:8083"`
	NotificationURL   string        `envconfig:"NOTIFICATION_URL" default:"http://notification-service:8085"`
	JWTSecret         string        `envconfig:"JWT_SECRET"`
	JWKSURL           string        `envconfig:"JWKS_URL"`
	JWKSCacheTTL      time.Duration `envconfig:"JWKS_CACHE_TTL" default:"5m"`
	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	RateLimit         int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	RateLimitFailOpen bool          `envconfig:"RATE_LIMIT_FAIL_OPEN" default:"true"`
	CORSOrigins       string        `envconfig:"CORS_ALLOWED_ORIGINS"`
	CORSCredentials   bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`
	BodyLimitBytes    int64         `envconfig:"REQUEST_BODY_LIMIT_BYTES" default:"1048576"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
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

	var keys auth.KeySource
	if cfg.JWKSURL != "" {
		keys = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSCacheTTL)
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, keys)

	var limiter httpx.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimit, time.Minute, "gw")
		logger.Info("rate limiting enabled", "backend", "redis", "per_minute", cfg.RateLimit, "redis_addr", cfg.RedisAddr)
	} else {
		limiter = httpx.NewMemoryLimiter(cfg.RateLimit, time.Minute)
		logger.Info("rate limiting enabled", "backend", "memory", "per_minute", cfg.RateLimit)
	}
	rateLimitMW := httpx.WithRateLimit(limiter, auth.RateLimitKey, logger, cfg.RateLimitFailOpen)

	routes, err := buildHandler(Upstreams{Booking: cfg.BookingURL, Notification: cfg.NotificationURL}, verifier, rateLimitMW, logger)
	if err != nil {
		logger.Error("gateway routes invalid", "err", err)
		os.Exit(1)
	}

	handler := httpx.Chain(routes,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   httpx.SplitList(cfg.CORSOrigins),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders:   []string{httpx.RequestIDHeader, "Retry-After"},
			AllowCredentials: cfg.CORSCredentials,
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger, "/healthz", "/readyz"),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              cfg.Port.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runtime.ServeHTTP(ctx, logger, srv)
}
