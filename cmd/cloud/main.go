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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"solwatch/docs"
	"solwatch/internal/client/dexscreener"
	"solwatch/internal/config"
	cronrunner "solwatch/internal/cron"
	"solwatch/internal/db"
	"solwatch/internal/handler"
	"solwatch/internal/logger"
	"solwatch/internal/market"
	"solwatch/internal/repository"
	gormrepository "solwatch/internal/repository/gorm"
	redisrepository "solwatch/internal/repository/redis"
	"solwatch/internal/service"
)

func main() {
	cfgPath := os.Getenv("WL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("WL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var (
		watchlists repository.WatchlistRepository
		settings   repository.SettingsRepository
		states     repository.SyncStateRepository
		checks     = map[string]func(context.Context) error{}
	)
	switch backend := cfg.Store.Backend(); backend {
	case "postgres":
		dbConn, err := db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store := gormrepository.New(dbConn.Gorm)
		watchlists, settings, states = store, store, store
		checks["postgres"] = store.Ping
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		store := redisrepository.New(client, cfg.Redis.KeyPrefix)
		watchlists = store
		checks["redis"] = store.Ping
	case "none":
		logger.Warn("no watchlist store configured; clients will run local-only")
	default:
		logger.Fatal("unknown store driver", zap.String("driver", backend))
	}

	settingsSvc := &service.SystemSettingsService{Repo: settings}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	dex := dexscreener.NewClient(dexscreener.Options{
		BaseURL:        cfg.Dexscreener.BaseURL,
		Timeout:        cfg.Dexscreener.Timeout,
		RetryMax:       cfg.Dexscreener.RetryMax,
		RequestsPerMin: cfg.Dexscreener.RequestsPerMin,
		Logger:         logger,
	})
	adapter := &market.Adapter{
		Source:      dex,
		Chain:       cfg.Market.Chain,
		BatchSize:   cfg.Market.BatchSize,
		Concurrency: cfg.Market.Concurrency,
		Logger:      logger,
	}
	batchSvc := &service.BatchRefreshService{
		Repo:        watchlists,
		States:      states,
		Market:      adapter,
		Flags:       settingsSvc,
		Logger:      logger,
		Timeout:     cfg.Batch.Timeout,
		Concurrency: cfg.Batch.Concurrency,
		WriteRetry:  cfg.Batch.WriteRetry,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	engine.Use(handler.AccessLog(logger))

	(&handler.HealthHandler{Checks: checks}).Register(engine)
	(&handler.WatchlistHandler{Repo: watchlists, Logger: logger, Token: cfg.Server.APIToken}).Register(engine)
	(&handler.CronHandler{Service: batchSvc, Secret: cfg.Server.CronSecret, Logger: logger}).Register(engine)
	(&handler.SystemSettingsHandler{Repo: settings, States: states, Settings: settingsSvc, Token: cfg.Server.APIToken}).Register(engine)

	docs.SwaggerInfo.Title = "solwatch cloud API"
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && watchlists != nil {
		if _, err := cronRunner.Add("batch_refresh", cfg.Cron.BatchRefresh, batchSvc.RunScheduled); err != nil {
			logger.Warn("cron register batch refresh failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr), zap.String("store", cfg.Store.Backend()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}
