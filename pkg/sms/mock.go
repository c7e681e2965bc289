package sms

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"SafeArrival/pkg/logger"
)

type MockCall struct {
	Phone         string
	SignName      string
	TemplateCode  string
	TemplateParam string
}

// MockClient 开发环境与测试使用的短信客户端，只记录调用
type MockClient struct {
	mu    sync.Mutex
	calls []MockCall

	// failures 大于 0 时，接下来的调用依次返回 mock 错误
	failures int
}

func NewMockClient() *MockClient {
	return &MockClient{calls: make([]MockCall, 0)}
}

// FailNext 让接下来的 n 次调用失败
func (m *MockClient) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// Calls 返回调用记录的副本
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) SendSingle(ctx context.Context, phone, signName, templateCode, templateParam string) (*SendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Phone:         phone,
		SignName:      signName,
		TemplateCode:  templateCode,
		TemplateParam: templateParam,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("mock sms send failure")
	}

	logger.Logger.Info("Mock SMS sent",
		zap.String("template", templateCode),
		zap.String("param", templateParam),
	)

	return &SendResponse{
		MessageID:  "mock-message-id",
		StatusCode: "OK",
		Message:    "mock send success",
		RequestID:  "mock-request-id",
		Provider:   "mock",
		Template:   templateCode,
	}, nil
}
