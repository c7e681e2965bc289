package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordSMSSent 记录短信发送成功
func RecordSMSSent(template, provider string, duration float64) {
	recordSMS(template, provider, "success", duration)
}

// RecordSMSFailed 记录短信发送失败
func RecordSMSFailed(template, provider string, duration float64) {
	recordSMS(template, provider, "failed", duration)
}

func recordSMS(template, provider, status string, duration float64) {
	if metrics == nil {
		return
	}
	ctx := context.Background()
	metrics.SMSSentTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("template", template),
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
	metrics.SMSSendDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("template", template),
		attribute.String("provider", provider),
	))
}
