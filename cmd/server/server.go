package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"go.uber.org/zap"

	"SafeArrival/config"
	"SafeArrival/internal/middleware"
	"SafeArrival/internal/router"
	"SafeArrival/internal/schedule"
	"SafeArrival/internal/service"
	dbotel "SafeArrival/pkg/database"
	"SafeArrival/pkg/logger"
	"SafeArrival/pkg/metrics"
	mqotel "SafeArrival/pkg/mq"
	"SafeArrival/pkg/otel"
	redisotel "SafeArrival/pkg/redis"
	"SafeArrival/pkg/snowflake"
	"SafeArrival/pkg/token"
	"SafeArrival/storage"
	"SafeArrival/storage/database"
	"SafeArrival/storage/redis"
	"SafeArrival/utils"
)

func main() {
	// 日志部分
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

	if cfg.OTelEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
			ServiceName:  cfg.ServiceName,
			Environment:  cfg.Environment,
			OTLPEndpoint: cfg.OTelEndpoint,
			SampleRatio:  cfg.OTelSampleRatio,
		},
			metrics.InitMetrics,
			middleware.InitMetrics,
			redisotel.InitRedisMetrics,
			dbotel.InitDatabaseMetrics,
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

	if cfg.SOSContactPhone != "" && !utils.ValidatePhone(cfg.SOSContactPhone) {
		logger.Logger.Warn("SOS_CONTACT_PHONE is not in E.164 format, the SMS gateway may reject it",
			zap.String("phone_hash", utils.HashPhone(cfg.SOSContactPhone)),
		)
	}

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	svc, err := service.Build(cfg, redis.Client(), redis.Key, database.DB())
	if err != nil {
		logger.Logger.Fatal("Failed to build services", zap.Error(err))
	}
	service.Register(svc)
	defer svc.Journey.Stop()

	// token 在中间件前初始化，middleware 依赖 token
	if cfg.APIAuthEnabled {
		if err := token.Init(cfg.JWTSecret, time.Duration(cfg.JWTExpireMinutes)*time.Minute); err != nil {
			logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
		}
		deviceToken, expiresAt, err := token.GenerateDeviceToken(cfg.DeviceID)
		if err != nil {
			logger.Logger.Fatal("Failed to generate device token", zap.Error(err))
		}
		if err := token.WriteDeviceToken(cfg.DeviceTokenPath, deviceToken); err != nil {
			logger.Logger.Fatal("Failed to write device token", zap.Error(err))
		}
		logger.Logger.Info("Device token written",
			zap.String("path", cfg.DeviceTokenPath),
			zap.Time("expires_at", expiresAt),
		)
	}

	if err := middleware.Init(cfg.APIAuthEnabled); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	// 启动时先对账一次，覆盖进程不在时错过的截止时间
	if snapshot, err := svc.Journey.Reconcile(ctx); err != nil {
		logger.Logger.Error("Initial reconcile failed", zap.Error(err))
	} else {
		logger.Logger.Info("Initial reconcile finished", zap.String("status", snapshot.Status))
	}

	watchdog := schedule.NewWatchdog(cfg.ReconcileInterval, func(ctx context.Context) error {
		_, err := svc.Journey.Reconcile(ctx)
		return err
	})
	go watchdog.Run(ctx)

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.ServiceName),
		zap.String("port", cfg.ServerPort),
		zap.String("environment", cfg.Environment),
		zap.String("scheduler", cfg.NotifyScheduler),
	)

	addr := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)
	opts := []hertzconfig.Option{server.WithHostPorts(addr)}

	var tracing app.HandlerFunc
	if cfg.OTelEnabled {
		var tracer hertzconfig.Option
		tracer, tracing = middleware.NewServerTracerConfig()
		opts = append(opts, tracer)
	}

	h := server.Default(opts...)
	if tracing != nil {
		h.Use(tracing)
	}
	router.Register(h, router.Options{
		IsProduction: cfg.IsProduction(),
		SOSLimiter:   middleware.NewRateLimiter(middleware.ManualSOSRateLimitConfig, redis.Client(), redis.Key),
	})

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
