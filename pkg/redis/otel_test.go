package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingHook_RecordsCommandsAndPipelines(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rdb.AddHook(NewTracingHook("test", 0))

	ctx := context.Background()
	require.NoError(t, rdb.Set(ctx, "sa:k", "v", 0).Err())
	require.ErrorIs(t, rdb.Get(ctx, "sa:missing").Err(), redis.Nil)
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, "sa:h")
		pipe.HSet(ctx, "sa:h", "f", "v")
		return nil
	})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	require.Contains(t, names, "set")
	require.Contains(t, names, "get")
	require.Contains(t, names, "redis.pipeline")
}

func TestCommandKey(t *testing.T) {
	require.Equal(t, "", commandKey([]interface{}{"ping"}))
	require.Equal(t, "sa:k", commandKey([]interface{}{"get", "sa:k"}))
	require.Equal(t, "", commandKey([]interface{}{"get", 1}))
}
