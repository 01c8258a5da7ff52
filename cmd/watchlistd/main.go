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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"solwatch/docs"
	"solwatch/internal/client/dexscreener"
	"solwatch/internal/config"
	cronrunner "solwatch/internal/cron"
	"solwatch/internal/handler"
	"solwatch/internal/logger"
	"solwatch/internal/market"
	"solwatch/internal/refresh"
	"solwatch/internal/syncer"
	"solwatch/internal/watchlist"
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
	store := watchlist.NewStore(nil, watchlist.Options{
		Fetcher:   adapter,
		MaxTokens: cfg.Watchlist.MaxTokens,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	remote := syncer.NewHTTPRemote(syncer.HTTPRemoteOptions{
		BaseURL:  cfg.Sync.RemoteURL,
		Token:    cfg.Sync.RemoteToken,
		Timeout:  cfg.Sync.Timeout,
		RetryMax: 2,
		Logger:   logger,
	})
	controller := &syncer.Controller{
		Store:        store,
		Local:        syncer.FileStore{Dir: cfg.Sync.LocalDir},
		Remote:       remote,
		Logger:       logger,
		Debounce:     cfg.Sync.Debounce,
		WriteTimeout: cfg.Sync.Timeout,
		ShareBaseURL: cfg.Sync.ShareBaseURL,
	}
	startCtx, cancelStart := context.WithTimeout(ctx, cfg.Sync.Timeout)
	err = controller.Start(startCtx, cfg.Sync.WatchlistID)
	cancelStart()
	if err != nil {
		logger.Fatal("sync start failed", zap.Error(err))
	}
	st := controller.Status()
	logger.Info("watchlist ready",
		zap.String("id", st.WatchlistID),
		zap.String("share_link", st.ShareLink),
		zap.String("mode", string(st.Mode)),
	)

	scheduler := &refresh.Scheduler{Store: store, Market: adapter, Logger: logger}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	engine.Use(handler.AccessLog(logger))

	(&handler.HealthHandler{}).Register(engine)
	(&handler.SessionHandler{Store: store, Sync: controller, Refresh: scheduler}).Register(engine)

	docs.SwaggerInfo.Title = "solwatch session API"
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add("refresh", cfg.Cron.Refresh, scheduler.Run); err != nil {
			logger.Warn("cron register refresh failed", zap.Error(err))
		}
	}
	cronRunner.Start()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Startup refresh so a reopened session does not wait a full interval.
	go scheduler.Tick(ctx, false)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	cronRunner.Stop()
	if err := controller.Flush(shutdownCtx); err != nil {
		logger.Warn("final sync failed", zap.Error(err))
	}
}
