package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/billing"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/customer"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/health"
	"github.com/noah-isme/backend-kasir/internal/notify"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/ratelimit"
	"github.com/noah-isme/backend-kasir/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kasir")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kasir-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if metricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	} else {
		logger.Warn().Msg("REDIS_URL not set; caching, rate limiting, idempotency, and notifications are disabled")
	}

	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerRatio, cfg.BreakerOpenFor).
		WithLogging("store", &logger)
	store := &gateway.Client{
		BaseURL: cfg.StoreBaseURL,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: cfg.StoreRetryBackoff,
			MaxAttempts: cfg.StoreRetries,
			Jitter:      0.2,
			Timeout:     cfg.StoreTimeout,
		},
		Tokens: auth.ContextTokenSource{},
		Logger: &logger,
	}

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))
	verifier.Issuer = cfg.JWTIssuer

	defaultTax, err := decimal.NewFromString(cfg.DefaultTaxPercent)
	if err != nil {
		logger.Fatal().Err(err).Str("value", cfg.DefaultTaxPercent).Msg("parse default tax percent")
	}

	notifiers := []events.Notifier{}
	var taskClient *asynq.Client
	if redisClient != nil {
		taskClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisClient.Options().Addr, Password: redisClient.Options().Password, DB: redisClient.Options().DB})
		defer func() { _ = taskClient.Close() }()
		notifiers = append(notifiers, &notify.Enqueuer{Client: taskClient, Logger: logger})
	}
	bus := &events.Bus{Notifiers: notifiers}

	manager := billing.NewManager()
	manager.Store = store
	manager.Events = bus
	manager.DefaultTax = defaultTax
	manager.Logger = &logger

	catalogService := catalog.NewService(catalog.ServiceConfig{
		Store:        store,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger:       logger,
		DefaultLimit: cfg.SearchLimit,
	})
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService, SearchLimit: cfg.SearchLimit})
	customerHandler := customer.NewHandler(customer.HandlerConfig{Store: store})
	billingHandler := billing.NewHandler(billing.HandlerConfig{Manager: manager, Products: catalogService})
	invoiceHandler := billing.NewInvoiceHandler(store, 0)

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	searchLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:search:"},
		Config: ratelimit.Config{
			Key:    ratelimit.PerTerminal,
			Window: time.Minute,
			Max:    cfg.RateLimitPerMinute,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Terminal-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Authenticate(verifier))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{store: store, redis: redisClient},
		StoreTimeout: cfg.StoreTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.Products)
		v.With(searchLimit.Middleware).Get("/products/search", catalogHandler.Search)
		v.Get("/products/{id}", catalogHandler.ProductDetail)

		v.Get("/customers", customerHandler.Search)
		v.Post("/customers", customerHandler.Create)

		v.Get("/invoices", invoiceHandler.List)
		v.Get("/invoices/{id}", invoiceHandler.Get)

		v.Route("/session", func(s chi.Router) {
			s.Get("/", billingHandler.Snapshot)
			s.Post("/tabs", billingHandler.NewTab)
			s.Post("/tabs/{tabId}/select", billingHandler.SelectTab)
			s.Post("/tabs/{tabId}/close", billingHandler.CloseTab)
			s.Post("/tabs/{tabId}/hold", billingHandler.HoldTab)
			s.Post("/tabs/{tabId}/clear", billingHandler.ClearTab)
			s.Post("/held/{billId}/resume", billingHandler.ResumeHeld)
			s.Delete("/held/{billId}", billingHandler.DiscardHeld)
			s.Post("/cart/items", billingHandler.AddItem)
			s.Post("/cart/items/{productId}/increment", billingHandler.IncrementItem)
			s.Post("/cart/items/{productId}/decrement", billingHandler.DecrementItem)
			s.Delete("/cart/items/{productId}", billingHandler.RemoveItem)
			s.Put("/discount", billingHandler.SetDiscount)
			s.Put("/customer", billingHandler.SetCustomer)
			s.With(auth.RequireAuth, idem.Middleware).Post("/invoice", billingHandler.CreateInvoice)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	store *gateway.Client
	redis *redis.Client
}

func (c readinessChecker) PingStore(ctx context.Context, timeout time.Duration) error {
	if c.store == nil {
		return errors.New("store not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.store.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
