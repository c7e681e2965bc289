package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"SafeArrival/pkg/logger"
	"SafeArrival/storage/database"
	"SafeArrival/storage/mq"
	"SafeArrival/storage/redis"
)

// Close 优雅关闭所有存储连接，未初始化的连接直接跳过
// 先停止消息队列，再关闭 Redis，最后关闭数据库
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	closers := []struct {
		name  string
		close func(context.Context) error
	}{
		{"message queue", mq.Close},
		{"redis", redis.Close},
		{"database", database.Close},
	}

	for _, c := range closers {
		if err := c.close(ctx); err != nil {
			logger.Logger.Error("Failed to close storage", zap.String("component", c.name), zap.Error(err))
			continue
		}
		logger.Logger.Debug("Storage closed", zap.String("component", c.name))
	}

	logger.Logger.Info("All storage connections closed")
}
