package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"SafeArrival/config"
)

func TestKey(t *testing.T) {
	prev := config.Cfg.RedisPrefix
	t.Cleanup(func() { config.Cfg.RedisPrefix = prev })

	config.Cfg.RedisPrefix = ""
	require.Equal(t, "sa:journey", Key("journey"))

	config.Cfg.RedisPrefix = "safearrival"
	require.Equal(t, "safearrival:sos:req", Key("sos", "", "req"))
	require.Equal(t, "safearrival", Key())
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewClient(ctx, &config.Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Set(ctx, "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), &config.Config{RedisAddr: addr})
	require.Error(t, err)
}
