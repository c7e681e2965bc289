package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"SafeArrival/config"
	"SafeArrival/internal/cache"
	"SafeArrival/internal/queue"
	"SafeArrival/internal/schedule"
	"SafeArrival/pkg/logger"
	"SafeArrival/pkg/metrics"
	mqotel "SafeArrival/pkg/mq"
	"SafeArrival/pkg/otel"
	redisotel "SafeArrival/pkg/redis"
	"SafeArrival/storage"
	"SafeArrival/storage/redis"
)

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	cfg := &config.Cfg

	// worker 只在队列调度模式下有意义
	if cfg.NotifyScheduler != "queue" {
		logger.Logger.Fatal("Worker requires NOTIFY_SCHEDULER=queue",
			zap.String("scheduler", cfg.NotifyScheduler),
		)
	}

	if cfg.OTelEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
			ServiceName:  cfg.ServiceName + "-worker",
			Environment:  cfg.Environment,
			OTLPEndpoint: cfg.OTelEndpoint,
			SampleRatio:  cfg.OTelSampleRatio,
		},
			metrics.InitMetrics,
			redisotel.InitRedisMetrics,
			mqotel.InitMQMetrics,
		)
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry, continuing without telemetry", zap.Error(err))
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
				}
			}()
		}
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	sink, err := schedule.NewSink(cfg.NotifySink, cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	if err != nil {
		logger.Logger.Fatal("Failed to create notification sink", zap.Error(err))
	}

	handler := queue.NewNotificationHandler(cache.NewScheduleTokenStore(redis.Client(), redis.Key), sink)

	logger.Logger.Info("Worker service starting",
		zap.String("service", cfg.ServiceName+"-worker"),
		zap.String("environment", cfg.Environment),
		zap.String("sink", sink.Name()),
	)

	// 启动所有的消费者部分
	queue.StartAllConsumers(ctx, handler)

	logger.Logger.Info("Worker service shutting down gracefully")
}
