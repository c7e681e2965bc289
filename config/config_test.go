package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	var c Config
	require.NoError(t, env.Parse(&c))

	require.Equal(t, time.Minute, c.CheckWindow)
	require.Equal(t, time.Minute, c.WarningWindow)
	require.Equal(t, 24*time.Hour, c.MaxJourneyDuration)
	require.Equal(t, 15*time.Second, c.SOSLocationTimeout)
	require.Equal(t, "timer", c.NotifyScheduler)
}

func TestParseWindowsFromEnv(t *testing.T) {
	t.Setenv("CHECK_WINDOW", "5m")
	t.Setenv("WARNING_WINDOW", "90s")

	var c Config
	require.NoError(t, env.Parse(&c))
	require.Equal(t, 5*time.Minute, c.CheckWindow)
	require.Equal(t, 90*time.Second, c.WarningWindow)
}

func TestValidate_FixesInvalidValues(t *testing.T) {
	c := Config{
		CheckWindow:       0,
		WarningWindow:     -time.Second,
		APIAuthEnabled:    true,
		NotifySink:        "webhook",
		SOSContactPhone:   "+8613800138000",
		ReconcileInterval: time.Second,
	}

	warnings := c.Validate()
	require.Len(t, warnings, 4)
	require.Equal(t, time.Minute, c.CheckWindow)
	require.Equal(t, time.Minute, c.WarningWindow)
	require.False(t, c.APIAuthEnabled)
	require.Equal(t, "log", c.NotifySink)
}

func TestGetRabbitMQURL(t *testing.T) {
	c := Config{
		RabbitMQUsername: "guest",
		RabbitMQPassword: "pw",
		RabbitMQAddr:     "mq",
		RabbitMQPort:     "5672",
		RabbitMQVhost:    "/",
	}
	require.Equal(t, "amqp://guest:pw@mq:5672/", c.GetRabbitMQURL())
}
