package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"SafeArrival/config"
	"SafeArrival/pkg/logger"
)

// 行程提醒使用的拓扑，依赖 rabbitmq_delayed_message_exchange 插件
const (
	DelayedExchange        = "journey.delayed"
	NotificationQueue      = "journey.notification"
	NotificationRoutingKey = "journey.notification.fire"
	DeadLetterExchange     = "journey.dlx"
	DeadLetterQueue        = "journey.notification.dlq"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

// Init 建立连接并声明拓扑
func Init() error {
	connOnce.Do(func() {
		conn, connErr = amqp.Dial(config.Cfg.GetRabbitMQURL())
		if connErr != nil {
			return
		}

		ch, err := conn.Channel()
		if err != nil {
			connErr = fmt.Errorf("failed to open setup channel: %w", err)
			return
		}
		defer ch.Close()

		if err := declareTopology(ch); err != nil {
			connErr = err
			return
		}

		logger.Logger.Info("RabbitMQ initialized",
			zap.String("exchange", DelayedExchange),
			zap.String("queue", NotificationQueue),
		)
	})

	return connErr
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead letter queue: %w", err)
	}

	err := ch.ExchangeDeclare(DelayedExchange, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": amqp.ExchangeDirect})
	if err != nil {
		return fmt.Errorf("failed to declare delayed exchange: %w", err)
	}

	_, err = ch.QueueDeclare(NotificationQueue, true, false, false, false,
		amqp.Table{"x-dead-letter-exchange": DeadLetterExchange})
	if err != nil {
		return fmt.Errorf("failed to declare notification queue: %w", err)
	}

	if err := ch.QueueBind(NotificationQueue, NotificationRoutingKey, DelayedExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind notification queue: %w", err)
	}
	return nil
}

// Connection 返回当前连接，未初始化时为 nil
func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	pubMutex.Lock()
	if publisherCh != nil {
		_ = publisherCh.Close()
		publisherCh = nil
	}
	pubMutex.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
