package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"

	"SafeArrival/internal/cache"
	"SafeArrival/internal/model"
	"SafeArrival/pkg/logger"
	"SafeArrival/pkg/metrics"
)

// Sink 通知最终的投递端
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n model.Notification) error
	// Ping 检查投递端是否可用，用于通知权限探测
	Ping(ctx context.Context) error
}

func deliver(ctx context.Context, sink Sink, n model.Notification) {
	err := sink.Deliver(ctx, n)
	metrics.RecordNotificationDelivered(ctx, string(n.Kind), sink.Name(), err == nil)
	if err != nil {
		logger.Logger.Warn("Failed to deliver notification",
			zap.String("sink", sink.Name()),
			zap.String("journey_id", n.JourneyID),
			zap.Int("notification_id", n.ID),
			zap.Error(err),
		)
	}
}

// LogSink 只写日志，适合没有通知守护进程的环境
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(ctx context.Context, n model.Notification) error {
	logger.Logger.Info("Notification",
		zap.Int("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("journey_id", n.JourneyID),
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.String("action_type_id", n.ActionTypeID),
	)
	return nil
}

func (LogSink) Ping(context.Context) error { return nil }

// WebhookSink 以 JSON POST 的方式把通知交给本地通知守护进程
type WebhookSink struct {
	client  *client.Client
	url     string
	breaker *cache.CircuitBreaker
}

func NewWebhookSink(url string, timeout time.Duration, breaker *cache.CircuitBreaker) (*WebhookSink, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url is empty")
	}
	c, err := client.NewClient(
		client.WithDialTimeout(timeout),
		client.WithClientReadTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}
	return &WebhookSink{client: c, url: url, breaker: breaker}, nil
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	return s.breaker.Call(ctx, func(ctx context.Context) error {
		code, err := s.do(ctx, consts.MethodPost, body)
		if err != nil {
			return err
		}
		if code < 200 || code >= 300 {
			return fmt.Errorf("webhook returned status %d", code)
		}
		return nil
	})
}

// Ping 任何非 5xx 响应都说明守护进程在线
func (s *WebhookSink) Ping(ctx context.Context) error {
	code, err := s.do(ctx, consts.MethodGet, nil)
	if err != nil {
		return err
	}
	if code >= 500 {
		return fmt.Errorf("webhook returned status %d", code)
	}
	return nil
}

func (s *WebhookSink) do(ctx context.Context, method string, body []byte) (int, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.SetMethod(method)
	if body != nil {
		req.Header.SetContentTypeBytes([]byte("application/json"))
		req.SetBody(body)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = s.client.DoDeadline(ctx, req, resp, deadline)
	} else {
		err = s.client.Do(ctx, req, resp)
	}
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	return resp.StatusCode(), nil
}

// NewSink 按名称创建投递端
func NewSink(kind, url string, timeout time.Duration) (Sink, error) {
	switch kind {
	case "webhook":
		return NewWebhookSink(url, timeout, cache.SinkBreaker)
	case "log", "":
		return LogSink{}, nil
	default:
		return nil, fmt.Errorf("unsupported notification sink: %s", kind)
	}
}
