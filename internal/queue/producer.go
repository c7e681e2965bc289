package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"SafeArrival/internal/model"
	"SafeArrival/pkg/logger"
	"SafeArrival/storage/mq"
)

// PublishJourneyNotification 发布行程提醒消息（延迟消息）
func PublishJourneyNotification(ctx context.Context, msg model.JourneyNotificationMessage, delay time.Duration) error {
	err := mq.PublishDelayedMessage(
		ctx,
		mq.DelayedExchange,
		mq.NotificationRoutingKey,
		msg.MessageID,
		delay,
		msg,
	)
	if err != nil {
		logger.Logger.Error("Failed to publish journey notification message",
			zap.String("message_id", msg.MessageID),
			zap.String("journey_id", msg.Notification.JourneyID),
			zap.Int("notification_id", msg.Notification.ID),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published journey notification message",
		zap.String("message_id", msg.MessageID),
		zap.String("journey_id", msg.Notification.JourneyID),
		zap.Int("notification_id", msg.Notification.ID),
		zap.Duration("delay", delay),
	)

	return nil
}
