package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// httpMetrics 为空时中间件只做追踪
type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

var serverMetrics *httpMetrics

// toValidUTF8 统一清洗用户可控字符串，防止非法 UTF-8 触发指标/trace 序列化失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// InitMetrics 初始化 HTTP 指标
func InitMetrics(meter metric.Meter) error {
	m := &httpMetrics{}
	var err error

	if m.requests, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	if m.duration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	); err != nil {
		return err
	}

	if m.active, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	serverMetrics = m
	return nil
}

// routeOf 用注册的路由模板做标签，未匹配的请求归为一类
func routeOf(c *app.RequestContext) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// OpenTelemetryMiddleware 每个请求一个 server span，并记录请求指标
func OpenTelemetryMiddleware() app.HandlerFunc {
	tracer := otel.Tracer("safearrival-http")

	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		m := serverMetrics

		method := toValidUTF8(string(c.Method()))
		route := toValidUTF8(routeOf(c))

		spanCtx, span := tracer.Start(ctx, method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(method),
				semconv.HTTPRoute(route),
				semconv.HTTPURL(toValidUTF8(c.Request.URI().String())),
				attribute.String("http.user_agent", toValidUTF8(string(c.UserAgent()))),
			),
		)
		defer span.End()

		if requestID := c.GetHeader("X-Request-Id"); len(requestID) > 0 {
			span.SetAttributes(attribute.String("http.request_id", toValidUTF8(string(requestID))))
		}

		if m != nil {
			m.active.Add(ctx, 1)
			defer m.active.Add(ctx, -1)
		}

		c.Next(spanCtx)

		// 鉴权中间件在路由组上，设备 ID 只有在 Next 之后才可见
		if did, ok := GetDeviceID(ctx, c); ok {
			span.SetAttributes(attribute.String("enduser.id", toValidUTF8(did)))
		}

		statusCode := c.Response.StatusCode()
		span.SetAttributes(semconv.HTTPStatusCode(statusCode))
		switch {
		case statusCode >= 500:
			span.SetStatus(codes.Error, "HTTP server error")
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr)
			}
		case statusCode >= 400:
			span.SetStatus(codes.Error, "HTTP client error")
		default:
			span.SetStatus(codes.Ok, "")
		}

		if m == nil {
			return
		}

		attrs := metric.WithAttributes(
			semconv.HTTPMethod(method),
			semconv.HTTPRoute(route),
			semconv.HTTPStatusCode(statusCode),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// NewServerTracerConfig 创建 Hertz Server 的追踪配置
// 返回用于初始化 Hertz server 的配置选项和追踪中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
