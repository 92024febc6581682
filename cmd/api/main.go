package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/billing-assistant/cmd/mainconfig"
	"github.com/wolfman30/billing-assistant/internal/api/router"
	"github.com/wolfman30/billing-assistant/internal/assistant"
	"github.com/wolfman30/billing-assistant/internal/auditlog"
	"github.com/wolfman30/billing-assistant/internal/billing"
	appconfig "github.com/wolfman30/billing-assistant/internal/config"
	httpmiddleware "github.com/wolfman30/billing-assistant/internal/http/middleware"
	"github.com/wolfman30/billing-assistant/internal/llm"
	"github.com/wolfman30/billing-assistant/internal/observability/metrics"
	"github.com/wolfman30/billing-assistant/internal/tenantconfig"
	"github.com/wolfman30/billing-assistant/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting billing-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	auditDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	redisClient := redis.NewClient(mainconfig.RedisOptions(cfg))
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	gateway := llm.NewFactory(
		llm.WithBedrock(mainconfig.NewBedrockClient(awsCfg, cfg)),
		llm.WithCallTimeout(cfg.LLMTimeout),
	)

	metricsHandler, assistantMetrics := setupAssistantMetrics()

	billingStore := billing.NewPostgresStore(pool)
	sessionLog := auditlog.NewSessionLog(
		auditlog.NewPostgresLog(auditDB),
		auditlog.NewRedisCounter(redisClient, cfg.SessionCounterTTL),
	)
	tenantConfigs := tenantconfig.NewStore(redisClient)

	service, err := assistant.NewService(assistant.ServiceConfig{
		Configs:          tenantConfigs,
		Gateway:          gateway,
		Context:          billingStore,
		Actions:          billingStore,
		Confirmations:    assistant.NewRedisConfirmations(redisClient, cfg.ConfirmationTTL),
		ActionLog:        sessionLog,
		Metrics:          assistantMetrics,
		Logger:           logger,
		DefaultMaxTokens: cfg.DefaultMaxOutputTokens,
	})
	if err != nil {
		logger.Error("failed to build assistant service", "error", err)
		os.Exit(1)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopCleanup := make(chan struct{})
	go limiter.RunCleanup(5*time.Minute, 10*time.Minute, stopCleanup)

	r := router.New(&router.Config{
		Logger:             logger,
		AssistantHandler:   assistant.NewHandler(service, sessionLog, assistantMetrics, logger),
		TenantConfig:       tenantconfig.NewHandler(tenantConfigs, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(stopCleanup)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupAssistantMetrics registers the assistant collectors on a dedicated
// registry alongside the Go runtime and process collectors.
func setupAssistantMetrics() (http.Handler, *metrics.AssistantMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewAssistantMetrics(reg)
}

// connectPostgresPool returns nil when no URL is configured or the database
// cannot be reached.
func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}
