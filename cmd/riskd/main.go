package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/order-risk/internal/fraud"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/richxcame/order-risk/internal/riskconfig"
	"github.com/richxcame/order-risk/pkg/common"
	"github.com/richxcame/order-risk/pkg/config"
	"github.com/richxcame/order-risk/pkg/database"
	"github.com/richxcame/order-risk/pkg/health"
	"github.com/richxcame/order-risk/pkg/logger"
	"github.com/richxcame/order-risk/pkg/middleware"
	pkgredis "github.com/richxcame/order-risk/pkg/redis"
	"github.com/richxcame/order-risk/pkg/resilience"
	"github.com/richxcame/order-risk/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName = "riskd"
	maxBodySize = 1 << 20
)

var version = "dev"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Server, cfg.Tracing, version)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	var reporter fraud.ErrorReporter = fraud.LogReporter{}
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     serviceName + "@" + version,
		}); err != nil {
			logger.Fatal("Failed to initialize Sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
		reporter = fraud.SentryReporter{}
		logger.Info("Sentry error reporting enabled")
	}

	manager := loadRiskConfig(cfg.Risk)
	manager.OnChange(func(_, current risk.Config) {
		fraud.RecordActiveConfig(current)
	})
	fraud.RecordActiveConfig(manager.Current())

	checks := map[string]func() error{}
	var optional []string

	opts := []fraud.Option{
		fraud.WithErrorReporter(reporter),
		fraud.WithHistoryLimit(cfg.Risk.HistoryLimit),
		fraud.WithHistoryBreaker(resilience.NewCircuitBreaker(
			resilience.BuildSettings("order-history",
				cfg.Breaker.Interval,
				cfg.Breaker.Timeout,
				cfg.Breaker.FailureThreshold,
				cfg.Breaker.SuccessThreshold,
			),
			resilience.GracefulDegradation("order-history"),
		)),
	}

	var store fraud.AssessmentStore
	var baselines fraud.BaselineSource
	switch cfg.Risk.Store {
	case config.StorePostgres:
		if err := database.Migrate(&cfg.Database, fraud.Migrations, fraud.MigrationsDir); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(pool)
		logger.Info("Connected to PostgreSQL database")

		repo := fraud.NewRepository(pool)
		store, baselines = repo, repo
		opts = append(opts, fraud.WithHistory(repo), fraud.WithStoreRetry(database.RetryConfig()))
		checks["database"] = health.PingChecker("database", pool)
	default:
		mem := fraud.NewMemoryStore()
		store, baselines = mem, mem
		opts = append(opts, fraud.WithHistory(mem))
		logger.Warn("Using in-memory assessment store, data is lost on restart")
	}

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, serving baselines uncached", zap.Error(err))
		} else {
			defer redisClient.Close()
			baselines = fraud.NewBaselineCache(baselines, redisClient, cfg.Risk.BaselineCacheTTL)
			checks["redis"] = health.PingChecker("redis", redisClient)
			optional = append(optional, "redis")
			logger.Info("Connected to Redis")
		}
	}
	opts = append(opts, fraud.WithBaselineSource(baselines))

	if cfg.NATS.Enabled {
		nc, err := fraud.ConnectNATS(cfg.NATS.URL, serviceName)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Drain()
		opts = append(opts, fraud.WithAlertPublisher(fraud.NewNATSPublisher(nc, cfg.NATS.AlertSubject)))
		checks["nats"] = health.StatusChecker("nats", nc.IsConnected)
		optional = append(optional, "nats")
		logger.Info("Publishing security alerts to NATS", zap.String("subject", cfg.NATS.AlertSubject))
	}

	service := fraud.NewService(manager, store, opts...)
	handler := fraud.NewHandler(service)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.CorrelationID(),
		middleware.Recovery(),
		sentrygin.New(sentrygin.Options{Repanic: true}),
		middleware.RequestLogger("/healthz", "/readyz", "/metrics"),
		middleware.Metrics(serviceName),
		middleware.SecurityHeaders(cfg.Server.IsProduction()),
		middleware.MaxBodySize(maxBodySize),
	)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/readyz", common.HealthCheckWithDeps(serviceName, version, checks, optional...))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.NoRoute(func(c *gin.Context) {
		common.ErrorResponse(c, http.StatusNotFound, "route not found")
	})

	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Risk service starting", zap.String("port", cfg.Server.Port), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Risk service stopped")
}

// loadRiskConfig builds the config manager from the risk file, or from the
// defaults when no file is configured, and starts watching the file.
func loadRiskConfig(cfg config.RiskConfig) *riskconfig.Manager {
	initial := risk.DefaultConfig()

	var loader *riskconfig.FileLoader
	if cfg.ConfigFile != "" {
		loader = riskconfig.NewFileLoader(cfg.ConfigFile)
		loaded, err := loader.Load()
		if err != nil {
			logger.Fatal("Failed to load risk config", zap.String("file", cfg.ConfigFile), zap.Error(err))
		}
		initial = loaded
	}

	manager, err := riskconfig.NewManager(initial)
	if err != nil {
		logger.Fatal("Invalid risk config", zap.Error(err))
	}

	if cfg.Profile != "" {
		if _, err := manager.ApplyProfile(cfg.Profile); err != nil {
			logger.Fatal("Failed to apply risk profile", zap.String("profile", cfg.Profile), zap.Error(err))
		}
	}

	if loader != nil && cfg.WatchConfig {
		loader.OnReload(fraud.RecordConfigReload)
		loader.Watch(manager)
		logger.Info("Watching risk config", zap.String("file", cfg.ConfigFile))
	}
	return manager
}
