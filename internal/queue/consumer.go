package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"SafeArrival/internal/cache"
	"SafeArrival/internal/model"
	"SafeArrival/internal/schedule"
	"SafeArrival/pkg/errors"
	"SafeArrival/pkg/logger"
	"SafeArrival/storage/mq"
)

// NotificationHandler 消费到期的行程提醒
// 只有携带当前调度令牌的消息才会投递，取消或重排之后旧消息一律跳过
type NotificationHandler struct {
	tokens *cache.ScheduleTokenStore
	sink   schedule.Sink
}

func NewNotificationHandler(tokens *cache.ScheduleTokenStore, sink schedule.Sink) *NotificationHandler {
	return &NotificationHandler{tokens: tokens, sink: sink}
}

func (h *NotificationHandler) Handle(ctx context.Context, body []byte) error {
	var msg model.JourneyNotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 格式错误的消息重试也没有意义
		return errors.NewNonRetryableError("BAD_MESSAGE", err.Error(), "failed to unmarshal journey notification message")
	}

	current, err := h.tokens.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schedule token: %w", err)
	}
	if current == "" || current != msg.ScheduleToken {
		logger.Logger.Info("Stale journey notification, skipping",
			zap.String("message_id", msg.MessageID),
			zap.String("journey_id", msg.Notification.JourneyID),
			zap.Int("notification_id", msg.Notification.ID),
		)
		return &errors.SkipMessageError{Reason: fmt.Sprintf("schedule token of message %s is no longer current", msg.MessageID)}
	}

	if err := h.sink.Deliver(ctx, msg.Notification); err != nil {
		return fmt.Errorf("failed to deliver notification %d: %w", msg.Notification.ID, err)
	}

	logger.Logger.Info("Journey notification delivered",
		zap.String("message_id", msg.MessageID),
		zap.String("journey_id", msg.Notification.JourneyID),
		zap.Int("notification_id", msg.Notification.ID),
		zap.String("sink", h.sink.Name()),
	)
	return nil
}

// StartNotificationConsumer 启动行程提醒消费者
func StartNotificationConsumer(ctx context.Context, h *NotificationHandler) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         mq.NotificationQueue,
		ConsumerTag:   "journey_notification_consumer",
		PrefetchCount: 10,
		Handler:       h.Handle,
	})
}

// StartAllConsumers 启动所有消费者，阻塞直到全部退出
func StartAllConsumers(ctx context.Context, h *NotificationHandler) {
	var wg sync.WaitGroup

	consumers := []struct {
		name     string
		consumer func(context.Context) error
	}{
		{"journey_notification", func(ctx context.Context) error { return StartNotificationConsumer(ctx, h) }},
	}

	for _, c := range consumers {
		wg.Add(1)
		go func(name string, consumer func(context.Context) error) {
			defer wg.Done()

			logger.Logger.Info("Starting consumer", zap.String("consumer_name", name))

			if err := consumer(ctx); err != nil {
				logger.Logger.Error("Consumer exited with error",
					zap.String("consumer_name", name),
					zap.Error(err),
				)
			}
		}(c.name, c.consumer)
	}

	wg.Wait()

	logger.Logger.Info("All consumers stopped")
}
