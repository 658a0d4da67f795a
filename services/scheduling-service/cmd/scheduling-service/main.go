package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/inkbook/platform/libs/config"
	"github.com/inkbook/platform/libs/db"
	"github.com/inkbook/platform/libs/grpcx"
	"github.com/inkbook/platform/libs/httpx"
	"github.com/inkbook/platform/libs/kafkax"
	otelx "github.com/inkbook/platform/libs/otel"
	"github.com/inkbook/platform/libs/runtime"
	"github.com/inkbook/platform/services/scheduling-service/internal/availability"
	"github.com/inkbook/platform/services/scheduling-service/internal/cache"
	"github.com/inkbook/platform/services/scheduling-service/internal/consumer"
	"github.com/inkbook/platform/services/scheduling-service/internal/handlers"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
	"github.com/inkbook/platform/services/scheduling-service/internal/schedulerview"
	"github.com/inkbook/platform/services/scheduling-service/internal/storage"
	"github.com/inkbook/platform/services/scheduling-service/internal/suggest"
)

const readinessInterval = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9096")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = nil
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		ReadOnly: true,
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var source provider.Source = storage.NewRepository(pool)
	var rdb *redis.Client
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			panic(err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		cached := cache.New(source, rdb, cache.TTLs{
			Agenda:    config.Duration("CACHE_AGENDA_TTL", cache.DefaultTTLs.Agenda),
			Customer:  config.Duration("CACHE_CUSTOMER_TTL", cache.DefaultTTLs.Customer),
			Quotation: config.Duration("CACHE_QUOTATION_TTL", cache.DefaultTTLs.Quotation),
		}, config.String("CACHE_PREFIX", "scheduling"), logger)
		source = cached
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: cached.ReadyCheck()})
		startInvalidation(ctx, logger, cached)
		logger.Info("provider cache enabled")
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" && rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	calc := availability.NewCalculator(source, time.Now)
	scorer := suggest.NewDensityScorer(source, config.Int("DENSITY_CONCURRENCY", 8))
	suggester := suggest.NewSuggester(calc, scorer, time.Now, logger)
	scheduling := handlers.NewSchedulingHandler(handlers.Deps{
		Finder:       calc,
		Suggester:    suggester,
		Validator:    availability.NewValidator(source, time.Now),
		Scheduler:    schedulerview.NewAggregator(source, calc, suggester, time.Now, logger),
		Appointments: source,
		Logger:       logger,
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	scheduling.Register(mux)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "scheduling:rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedHeaders: config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id,X-User-Id,X-Role"),
			MaxAge:         config.Duration("CORS_MAX_AGE", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := grpcSrv.Serve(ctx, ":"+grpcPort); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		watchReadiness(ctx, grpcSrv, logger, checks)
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	grpcStopped := func(context.Context) error {
		wg.Wait()
		return nil
	}
	if err := runtime.Shutdown(10*time.Second, srv.Shutdown, grpcStopped, otelShutdown); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("scheduling service stopped")
}

// startInvalidation runs one consumer per configured topic. Without brokers
// the cache relies on TTL expiry alone.
func startInvalidation(ctx context.Context, logger *slog.Logger, cached *cache.Source) {
	brokers := config.String("KAFKA_BROKERS", "")
	if brokers == "" {
		logger.Warn("KAFKA_BROKERS not set; cache entries expire by TTL only")
		return
	}
	handler := consumer.InvalidationHandler(cached, logger)
	for _, topic := range config.List("KAFKA_INVALIDATION_TOPICS", strings.Join(consumer.DefaultTopics, ",")) {
		c := consumer.New(logger, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
}

// watchReadiness mirrors /readyz onto the gRPC health service.
func watchReadiness(ctx context.Context, srv *grpcx.Server, logger *slog.Logger, checks []runtime.ReadyCheck) {
	ticker := time.NewTicker(readinessInterval)
	defer ticker.Stop()
	serving := true
	for {
		failures := runtime.RunChecks(ctx, checks...)
		ok := len(failures) == 0
		if ok != serving {
			logger.Warn("readiness changed", "serving", ok, "failures", failures)
		}
		serving = ok
		srv.SetServing("", ok)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
