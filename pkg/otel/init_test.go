package otel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	cfg := withDefaults(Config{ServiceName: "safearrival", OTLPEndpoint: "http://collector:4317"})
	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, float64(1), cfg.SampleRatio)
	require.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	require.Equal(t, "dev", cfg.ServiceVersion)

	cfg = withDefaults(Config{Environment: "production", OTLPEndpoint: "https://collector:4317"})
	require.Equal(t, 0.1, cfg.SampleRatio)
	require.Equal(t, "collector:4317", cfg.OTLPEndpoint)

	cfg = withDefaults(Config{Environment: "production", SampleRatio: 0.5})
	require.Equal(t, 0.5, cfg.SampleRatio)
}

func TestGetServiceAttributes(t *testing.T) {
	attrs := GetServiceAttributes("safearrival", "1.0.0", "production")
	require.Len(t, attrs, 4)
	require.Equal(t, "safearrival", attrs[0].Value.AsString())
	require.Equal(t, serviceNamespace, attrs[3].Value.AsString())
}
