package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseZapLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseZapLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, parseZapLevel("warn"))
	require.Equal(t, zapcore.ErrorLevel, parseZapLevel("Error"))
	require.Equal(t, zapcore.InfoLevel, parseZapLevel("verbose"))
	require.Equal(t, zapcore.InfoLevel, parseZapLevel(""))

	require.Equal(t, hlog.LevelWarn, toHlogLevel(zapcore.WarnLevel))
	require.Equal(t, hlog.LevelInfo, toHlogLevel(zapcore.FatalLevel))
}

func TestNew_JSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safearrival.log")
	l, closer, err := New(Options{Level: "INFO", Format: "json", Output: path, DeviceID: "dev-1"})
	require.NoError(t, err)
	require.NotNil(t, closer)

	zl := l.Logger()
	zl.Debug("dropped")
	zl.Info("journey started")
	require.NoError(t, zl.Sync())
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "journey started", entry["msg"])
	require.Equal(t, "INFO", entry["level"])
	require.Equal(t, "dev-1", entry["device_id"])
}

func TestNew_BadPath(t *testing.T) {
	_, _, err := New(Options{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}
