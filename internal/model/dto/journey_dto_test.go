package dto

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestDurationRequest_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		req     DurationRequest
		want    time.Duration
		wantErr bool
	}{
		{name: "milliseconds", req: DurationRequest{DurationMs: int64Ptr(900_000)}, want: 15 * time.Minute},
		{name: "go duration", req: DurationRequest{Duration: "1h30m"}, want: 90 * time.Minute},
		{name: "milliseconds take precedence", req: DurationRequest{DurationMs: int64Ptr(60_000), Duration: "2h"}, want: time.Minute},
		{name: "largest representable", req: DurationRequest{DurationMs: int64Ptr(maxDurationMs)}, want: time.Duration(maxDurationMs) * time.Millisecond},
		{name: "zero ms", req: DurationRequest{DurationMs: int64Ptr(0)}, wantErr: true},
		{name: "negative ms", req: DurationRequest{DurationMs: int64Ptr(-5)}, wantErr: true},
		{name: "wraps to fifteen minutes", req: DurationRequest{DurationMs: int64Ptr(900_000 + 1<<58)}, wantErr: true},
		{name: "max int64 ms", req: DurationRequest{DurationMs: int64Ptr(math.MaxInt64)}, wantErr: true},
		{name: "just past limit", req: DurationRequest{DurationMs: int64Ptr(maxDurationMs + 1)}, wantErr: true},
		{name: "empty", req: DurationRequest{}, wantErr: true},
		{name: "non numeric", req: DurationRequest{Duration: "soon"}, wantErr: true},
		{name: "zero duration", req: DurationRequest{Duration: "0s"}, wantErr: true},
		{name: "negative duration", req: DurationRequest{Duration: "-5m"}, wantErr: true},
		{name: "overflowing duration", req: DurationRequest{Duration: "9999999999h"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Resolve()
			if tt.wantErr {
				require.Error(t, err)
				require.Zero(t, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
