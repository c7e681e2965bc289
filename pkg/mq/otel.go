package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "safearrival.rabbitmq"

var (
	// RabbitMQ 相关指标，未初始化时不记录
	mqMessagesTotal metric.Int64Counter
	mqErrorsTotal   metric.Int64Counter
)

// InitMQMetrics 初始化 RabbitMQ 指标
func InitMQMetrics(meter metric.Meter) error {
	var err error

	mqMessagesTotal, err = meter.Int64Counter(
		"rabbitmq.messages.total",
		metric.WithDescription("Total number of RabbitMQ messages published or consumed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	mqErrorsTotal, err = meter.Int64Counter(
		"rabbitmq.errors.total",
		metric.WithDescription("Total number of RabbitMQ publish or handler errors"),
		metric.WithUnit("{error}"),
	)
	return err
}

// StartPublishSpan 创建发布 Span，并把追踪上下文注入消息头
func StartPublishSpan(ctx context.Context, exchange, routingKey string, headers amqp.Table) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rabbitmq.publish "+exchange,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
			attribute.String("messaging.operation", "publish"),
		),
	)
	otel.GetTextMapPropagator().Inject(ctx, &MessageHeaderCarrier{Headers: headers})
	return ctx, span
}

// StartConsumeSpan 从消息头恢复追踪上下文并创建处理 Span
func StartConsumeSpan(ctx context.Context, queue string, msg amqp.Delivery) (context.Context, trace.Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, &MessageHeaderCarrier{Headers: msg.Headers})
	return otel.Tracer(tracerName).Start(ctx, "rabbitmq.process "+queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(queue),
			semconv.MessagingMessageID(msg.MessageId),
			attribute.String("messaging.operation", "process"),
		),
	)
}

// EndSpan 记录结果与指标
func EndSpan(span trace.Span, err error) {
	ctx := trace.ContextWithSpan(context.Background(), span)
	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		if mqErrorsTotal != nil {
			mqErrorsTotal.Add(ctx, 1)
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if mqMessagesTotal != nil {
		mqMessagesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("messaging.status", status)))
	}
}

// MessageHeaderCarrier 实现 propagation.TextMapCarrier 接口
type MessageHeaderCarrier struct {
	Headers amqp.Table
}

func (m *MessageHeaderCarrier) Get(key string) string {
	if val, ok := m.Headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (m *MessageHeaderCarrier) Set(key, value string) {
	if m.Headers == nil {
		m.Headers = make(amqp.Table)
	}
	m.Headers[key] = value
}

func (m *MessageHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	return keys
}
