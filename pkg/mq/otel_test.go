package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	headers := amqp.Table{"x-delay": int64(1000)}
	pubCtx, pubSpan := StartPublishSpan(context.Background(), "journey.delayed", "journey.notification.fire", headers)
	EndSpan(pubSpan, nil)

	require.NotEmpty(t, headers["traceparent"])
	require.Equal(t, int64(1000), headers["x-delay"])

	consumeCtx, span := StartConsumeSpan(context.Background(), "journey.notification", amqp.Delivery{Headers: headers})
	EndSpan(span, nil)

	require.Equal(t,
		trace.SpanContextFromContext(pubCtx).TraceID(),
		trace.SpanContextFromContext(consumeCtx).TraceID(),
	)
}

func TestMessageHeaderCarrier(t *testing.T) {
	c := &MessageHeaderCarrier{}
	c.Set("k", "v")
	require.Equal(t, "v", c.Get("k"))
	require.Equal(t, "", c.Get("missing"))
	require.ElementsMatch(t, []string{"k"}, c.Keys())
}
