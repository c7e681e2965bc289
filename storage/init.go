package storage

import (
	"SafeArrival/config"
	"SafeArrival/storage/database"
	"SafeArrival/storage/mq"
	"SafeArrival/storage/redis"
)

// Init 统一初始化存储层
// Redis 总是需要；PostgreSQL 仅在开启历史记录时连接；RabbitMQ 仅在队列调度模式下连接
func Init() error {
	if err := redis.Init(); err != nil {
		return err
	}

	if config.Cfg.HistoryEnabled {
		if err := database.Init(); err != nil {
			return err
		}
	}

	if config.Cfg.NotifyScheduler == "queue" {
		if err := mq.Init(); err != nil {
			return err
		}
	}

	return nil
}
