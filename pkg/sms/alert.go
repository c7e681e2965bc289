package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SafeArrival/pkg/metrics"
)

// Alert 发给紧急联系人的告警内容
type Alert struct {
	Message   string
	Link      string
	Latitude  float64
	Longitude float64
}

// AlertGateway 通过短信模板发送紧急告警
// 模板参数为 {"message","link","latitude","longitude"}
type AlertGateway struct {
	client       Client
	provider     string
	signName     string
	templateCode string
}

func NewAlertGateway(client Client, provider, signName, templateCode string) *AlertGateway {
	return &AlertGateway{
		client:       client,
		provider:     provider,
		signName:     signName,
		templateCode: templateCode,
	}
}

// SendAlert 向联系人发送一条告警
func (g *AlertGateway) SendAlert(ctx context.Context, phone string, alert Alert) (*SendResponse, error) {
	if phone == "" {
		return nil, fmt.Errorf("contact phone is empty")
	}

	param, err := json.Marshal(map[string]string{
		"message":   alert.Message,
		"link":      alert.Link,
		"latitude":  fmt.Sprintf("%.6f", alert.Latitude),
		"longitude": fmt.Sprintf("%.6f", alert.Longitude),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template param: %w", err)
	}

	start := time.Now()
	resp, err := g.client.SendSingle(ctx, phone, g.signName, g.templateCode, string(param))
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordSMSFailed(g.templateCode, g.provider, duration)
		return nil, err
	}

	metrics.RecordSMSSent(g.templateCode, g.provider, duration)
	return resp, nil
}
