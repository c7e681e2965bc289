package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SafeArrival/internal/model"
	"SafeArrival/internal/model/dto"
	"SafeArrival/pkg/clock"
	pkgerrors "SafeArrival/pkg/errors"
	"SafeArrival/pkg/location"
	"SafeArrival/pkg/logger"
	"SafeArrival/pkg/metrics"
	"SafeArrival/pkg/sms"
)

const (
	placeholderLink   = "Location unavailable"
	mapsLinkFormat    = "https://www.google.com/maps?q=%.6f,%.6f"
	defaultSOSMessage = "Emergency Alert! I need help."
	dispatchGuardTTL  = 24 * time.Hour
)

// ErrAlreadyDispatched 同一行程的告警已经由其他进程发出
var ErrAlreadyDispatched = stderrors.New("sos already dispatched for journey")

// AlertSender 消息网关
type AlertSender interface {
	SendAlert(ctx context.Context, phone string, alert sms.Alert) (*sms.SendResponse, error)
}

// SOSAttemptRecorder 记录每一次发送尝试
type SOSAttemptRecorder interface {
	RecordSOSAttempt(ctx context.Context, attempt *model.SOSAttempt) error
}

// DispatchGuard 以 journeyId 为键的一次性占位
type DispatchGuard interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type SOSOptions struct {
	Locator         location.Provider
	Gateway         AlertSender
	ContactPhone    string
	LocationTimeout time.Duration
	SendTimeout     time.Duration
	Clock           clock.Clock
	// 以下均可为空
	Attempts  SOSAttemptRecorder
	Guard     DispatchGuard
	HashPhone func(phone string) string
}

// SOSDispatcher 获取定位并向紧急联系人发送告警
// 首次尝试失败（无定位或网关错误）时，再以占位坐标尝试一次
type SOSDispatcher struct {
	opts SOSOptions
}

func NewSOSDispatcher(opts SOSOptions) *SOSDispatcher {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.HashPhone == nil {
		opts.HashPhone = func(string) string { return "" }
	}
	return &SOSDispatcher{opts: opts}
}

// Dispatch 行程超时后的自动告警
func (d *SOSDispatcher) Dispatch(ctx context.Context, j *model.Journey) (*dto.SOSResult, error) {
	// 没有联系人时不占用去重锁，配置补齐后仍可发送
	if d.opts.ContactPhone == "" {
		return nil, pkgerrors.SOSContactMissing
	}
	if d.opts.Guard != nil {
		ok, err := d.opts.Guard.TryLock(ctx, "sos:"+j.JourneyID, dispatchGuardTTL)
		switch {
		case err != nil:
			// Redis 不可用时宁可重复发送也不能不发
			logger.Logger.Warn("SOS dispatch guard unavailable, sending anyway",
				zap.String("journey_id", j.JourneyID),
				zap.Error(err),
			)
		case !ok:
			logger.Logger.Info("SOS already dispatched, skipping", zap.String("journey_id", j.JourneyID))
			return nil, ErrAlreadyDispatched
		}
	}

	msg := fmt.Sprintf("%s No safe arrival confirmation received for a journey that was due at %s.",
		defaultSOSMessage, j.ArrivalTime.UTC().Format(time.RFC3339))
	return d.send(ctx, j.JourneyID, msg, false)
}

// SendManual 紧急按钮，与自动告警走同一套流程
func (d *SOSDispatcher) SendManual(ctx context.Context, message string) (*dto.SOSResult, error) {
	if message == "" {
		message = defaultSOSMessage
	}
	return d.send(ctx, "", message, true)
}

func (d *SOSDispatcher) send(ctx context.Context, journeyID, message string, manual bool) (*dto.SOSResult, error) {
	if d.opts.ContactPhone == "" {
		return nil, pkgerrors.SOSContactMissing
	}

	start := d.opts.Clock.Now()
	result := &dto.SOSResult{RequestID: uuid.NewString()}

	fix, err := d.locate(ctx)
	if err == nil {
		alert := sms.Alert{
			Message:   message,
			Link:      fmt.Sprintf(mapsLinkFormat, fix.Latitude, fix.Longitude),
			Latitude:  fix.Latitude,
			Longitude: fix.Longitude,
		}
		err = d.attempt(ctx, result.RequestID, journeyID, manual, alert, false)
		if err == nil {
			result.Sent = true
			d.finish(ctx, result, manual, start, journeyID)
			return result, nil
		}
	}

	logger.Logger.Warn("SOS primary attempt failed, retrying with placeholder location",
		zap.String("journey_id", journeyID),
		zap.String("request_id", result.RequestID),
		zap.Error(err),
	)

	result.UsedFallback = true
	placeholder := sms.Alert{Message: message, Link: placeholderLink}
	if err := d.attempt(ctx, result.RequestID, journeyID, manual, placeholder, true); err != nil {
		d.finish(ctx, result, manual, start, journeyID)
		return result, fmt.Errorf("%w: %v", pkgerrors.SOSDispatchFailed, err)
	}

	result.Sent = true
	d.finish(ctx, result, manual, start, journeyID)
	return result, nil
}

func (d *SOSDispatcher) locate(ctx context.Context) (location.Fix, error) {
	if d.opts.Locator == nil {
		return location.Fix{}, location.ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.LocationTimeout)
	defer cancel()
	return d.opts.Locator.CurrentPosition(ctx)
}

func (d *SOSDispatcher) attempt(ctx context.Context, requestID, journeyID string, manual bool, alert sms.Alert, placeholder bool) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	_, err := d.opts.Gateway.SendAlert(sendCtx, d.opts.ContactPhone, alert)
	cancel()

	if d.opts.Attempts != nil {
		rec := &model.SOSAttempt{
			JourneyID:        journeyID,
			RequestID:        requestID,
			ContactPhoneHash: d.opts.HashPhone(d.opts.ContactPhone),
			Latitude:         alert.Latitude,
			Longitude:        alert.Longitude,
			Placeholder:      placeholder,
			Manual:           manual,
			Status:           model.SOSAttemptStatusSuccess,
			AttemptedAt:      d.opts.Clock.Now(),
		}
		if err != nil {
			reason := err.Error()
			rec.Status = model.SOSAttemptStatusFailed
			rec.ResponseMessage = &reason
		}
		if recErr := d.opts.Attempts.RecordSOSAttempt(ctx, rec); recErr != nil {
			logger.Logger.Warn("Failed to record SOS attempt",
				zap.String("request_id", requestID),
				zap.Error(recErr),
			)
		}
	}

	return err
}

func (d *SOSDispatcher) finish(ctx context.Context, result *dto.SOSResult, manual bool, start time.Time, journeyID string) {
	seconds := d.opts.Clock.Now().Sub(start).Seconds()
	metrics.RecordSOSDispatch(ctx, result.Sent, result.UsedFallback, manual, seconds)

	fields := []zap.Field{
		zap.String("journey_id", journeyID),
		zap.String("request_id", result.RequestID),
		zap.Bool("sent", result.Sent),
		zap.Bool("used_fallback", result.UsedFallback),
		zap.Bool("manual", manual),
	}
	if result.Sent {
		logger.Logger.Info("SOS alert dispatched", fields...)
	} else {
		logger.Logger.Error("SOS alert could not be sent", fields...)
	}
}
