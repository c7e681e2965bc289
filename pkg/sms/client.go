package sms

import (
	"context"
	"fmt"
)

// Client 短信网关接口
type Client interface {
	// SendSingle 发送单条短信
	// templateParam 为模板参数 JSON 字符串
	SendSingle(ctx context.Context, phone, signName, templateCode, templateParam string) (*SendResponse, error)
}

// SendResponse 短信发送响应
type SendResponse struct {
	MessageID  string // 网关返回的 MessageID（BizId）
	StatusCode string // 网关返回的状态码（如 "OK", "isv.BUSINESS_LIMIT_CONTROL"）
	Message    string // 错误消息（如果有）
	RequestID  string
	Provider   string
	Template   string
}

// New 按名称创建短信客户端
func New(provider string) (Client, error) {
	switch provider {
	case "aliyun":
		return NewAliyunClient()
	case "mock", "":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported SMS provider: %s", provider)
	}
}
