package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 行程相关指标
	StageTransitionsTotal metric.Int64Counter
	SOSDispatchTotal      metric.Int64Counter
	SOSDispatchDuration   metric.Float64Histogram

	// 通知相关指标
	NotificationScheduleFailures metric.Int64Counter
	NotificationsDelivered       metric.Int64Counter

	// 短信相关指标
	SMSSentTotal    metric.Int64Counter
	SMSSendDuration metric.Float64Histogram
}

// 全局指标实例，未初始化时所有记录函数都是空操作
var metrics *OTelMetrics

// InitMetrics 初始化 OpenTelemetry 指标，须在 MeterProvider 设置之后调用
func InitMetrics(meter metric.Meter) error {
	m := &OTelMetrics{}
	var err error

	if m.StageTransitionsTotal, err = meter.Int64Counter(
		"journey_stage_transitions_total",
		metric.WithDescription("Total number of journey stage transitions"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return err
	}

	if m.SOSDispatchTotal, err = meter.Int64Counter(
		"sos_dispatch_total",
		metric.WithDescription("Total number of SOS dispatch procedures"),
		metric.WithUnit("{dispatch}"),
	); err != nil {
		return err
	}

	if m.SOSDispatchDuration, err = meter.Float64Histogram(
		"sos_dispatch_duration_seconds",
		metric.WithDescription("Time spent on one SOS dispatch including location and fallback"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if m.NotificationScheduleFailures, err = meter.Int64Counter(
		"notification_schedule_failures_total",
		metric.WithDescription("Total number of failed notification schedule or cancel calls"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}

	if m.NotificationsDelivered, err = meter.Int64Counter(
		"notifications_delivered_total",
		metric.WithDescription("Total number of notifications handed to a sink"),
		metric.WithUnit("{notification}"),
	); err != nil {
		return err
	}

	if m.SMSSentTotal, err = meter.Int64Counter(
		"sms_sent_total",
		metric.WithDescription("Total number of SMS sent"),
		metric.WithUnit("{sms}"),
	); err != nil {
		return err
	}

	if m.SMSSendDuration, err = meter.Float64Histogram(
		"sms_send_duration_seconds",
		metric.WithDescription("Time spent sending SMS in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordStageTransition 记录一次阶段变化
func RecordStageTransition(ctx context.Context, from, to string) {
	if metrics == nil {
		return
	}
	metrics.StageTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordSOSDispatch 记录一次告警发送流程的结果
func RecordSOSDispatch(ctx context.Context, success, usedFallback, manual bool, seconds float64) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.Bool("fallback", usedFallback),
		attribute.Bool("manual", manual),
	)
	metrics.SOSDispatchTotal.Add(ctx, 1, attrs)
	metrics.SOSDispatchDuration.Record(ctx, seconds, attrs)
}

// RecordNotificationScheduleFailure 记录通知调度失败
func RecordNotificationScheduleFailure(ctx context.Context, scheduler, operation string) {
	if metrics == nil {
		return
	}
	metrics.NotificationScheduleFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scheduler", scheduler),
		attribute.String("operation", operation),
	))
}

// RecordNotificationDelivered 记录通知投递结果
func RecordNotificationDelivered(ctx context.Context, kind, sink string, ok bool) {
	if metrics == nil {
		return
	}
	metrics.NotificationsDelivered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("sink", sink),
		attribute.Bool("ok", ok),
	))
}
