package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/tender-processor/config"
	"github.com/feichai0017/tender-processor/internal/service/extraction"
	"github.com/feichai0017/tender-processor/pkg/logger"
	"github.com/feichai0017/tender-processor/pkg/queue"
	"github.com/feichai0017/tender-processor/pkg/worker"
)

func main() {
	configPath := flag.String("config", os.Getenv("TENDER_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
		logger.WithErrorPaths(cfg.Log.ErrorPaths),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Queue.Mode != "asynq" {
		log.Error("Worker needs queue mode asynq", logger.String("mode", cfg.Queue.Mode))
		os.Exit(1)
	}

	// 创建上下文和取消函数
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 创建提取服务
	comp, err := extraction.Build(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to build extraction service", logger.Error(err))
		os.Exit(1)
	}
	defer comp.Close()

	go comp.RunCleanup(ctx, time.Hour)

	statusClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer statusClient.Close()

	// 创建 worker
	jobWorker := worker.NewJobWorker(&worker.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Queue.Concurrency,
	}, comp.Service, queue.NewRedisStatusStore(statusClient, cfg.Jobs.Retention), log)

	// 启动 worker
	if err := jobWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	cancel()
	jobWorker.Stop()
	log.Info("Worker stopped")
}
