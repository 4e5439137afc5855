package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/tender-processor/api/handlers"
	"github.com/feichai0017/tender-processor/api/middleware"
	"github.com/feichai0017/tender-processor/api/routes"
	"github.com/feichai0017/tender-processor/config"
	"github.com/feichai0017/tender-processor/internal/service/export"
	"github.com/feichai0017/tender-processor/internal/service/extraction"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("TENDER_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
		logger.WithErrorPaths(cfg.Log.ErrorPaths),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// init extraction service
	comp, err := extraction.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build extraction service", logger.Error(err))
	}
	defer comp.Close()

	go comp.RunCleanup(ctx, time.Hour)

	// init handlers
	var tasks handlers.TaskStatusReader
	if comp.Queue != nil {
		tasks = comp.Queue
	}
	h := handlers.NewHandlers(
		comp.Service,
		export.NewStreamer(comp.Store, log),
		tasks,
		cfg.Limits.MaxBatchFiles,
		log,
	)

	var limiter gin.HandlerFunc
	if cfg.Server.RateLimit > 0 && comp.Redis != nil {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RedisClient: comp.Redis,
			Limit:       cfg.Server.RateLimit,
			Window:      time.Minute,
			KeyPrefix:   cfg.Jobs.KeyPrefix + ":rl:",
			Logger:      log,
		})
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.Limits.MaxFileSize
	routes.SetupRoutes(r, h, routes.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
