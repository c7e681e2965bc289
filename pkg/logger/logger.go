package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzap "github.com/hertz-contrib/logger/zap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"SafeArrival/config"
)

var (
	// Logger 在 Init 之前为 no-op，保证各包在测试中可直接使用
	Logger   = zap.NewNop()
	logClose io.Closer
)

// Options 日志输出配置
type Options struct {
	Level    string // DEBUG / INFO / WARN / ERROR
	Format   string // json / text
	Output   string // stdout 或文件路径
	DeviceID string
	Console  bool // 开发环境强制彩色文本
}

// OptionsFromConfig 从全局配置读取日志选项
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Level:    cfg.LoggerLevel,
		Format:   cfg.LoggerFormat,
		Output:   cfg.LoggerOutputPath,
		DeviceID: cfg.DeviceID,
		Console:  cfg.IsDevelopment(),
	}
}

// New 构建 hertz 适配的 zap logger，返回的 Closer 在输出为文件时非空
func New(opts Options) (*hertzzap.Logger, io.Closer, error) {
	ws, closer, err := openOutput(opts.Output)
	if err != nil {
		return nil, nil, err
	}

	level := zap.NewAtomicLevelAt(parseZapLevel(opts.Level))
	zapOpts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
	if opts.DeviceID != "" {
		zapOpts = append(zapOpts, zap.Fields(zap.String("device_id", opts.DeviceID)))
	}

	l := hertzzap.NewLogger(
		hertzzap.WithCoreEnc(newEncoder(opts)),
		hertzzap.WithCoreWs(ws),
		hertzzap.WithCoreLevel(level),
		hertzzap.WithZapOptions(zapOpts...),
	)
	return l, closer, nil
}

// Init 按全局配置初始化 Logger 并接管 hlog，失败时直接退出
func Init() {
	opts := OptionsFromConfig(&config.Cfg)
	hzLogger, closer, err := New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}

	hlog.SetLogger(hzLogger)
	hlog.SetLevel(toHlogLevel(parseZapLevel(opts.Level)))

	Logger = hzLogger.Logger()
	logClose = closer
	Logger.Info("Logger initialized",
		zap.String("level", strings.ToUpper(opts.Level)),
		zap.String("format", opts.Format),
		zap.String("environment", config.Cfg.Environment),
	)
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
	if logClose != nil {
		_ = logClose.Close()
		logClose = nil
	}
}

func newEncoder(opts Options) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder

	if opts.Console || strings.EqualFold(opts.Format, "text") {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

func openOutput(path string) (zapcore.WriteSyncer, io.Closer, error) {
	if path == "" || strings.EqualFold(path, "stdout") {
		return zapcore.AddSync(os.Stdout), nil, nil
	}
	if strings.EqualFold(path, "stderr") {
		return zapcore.AddSync(os.Stderr), nil, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return zapcore.AddSync(f), f, nil
}

func parseZapLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

var hlogLevels = map[zapcore.Level]hlog.Level{
	zapcore.DebugLevel: hlog.LevelDebug,
	zapcore.InfoLevel:  hlog.LevelInfo,
	zapcore.WarnLevel:  hlog.LevelWarn,
	zapcore.ErrorLevel: hlog.LevelError,
}

func toHlogLevel(level zapcore.Level) hlog.Level {
	if l, ok := hlogLevels[level]; ok {
		return l
	}
	return hlog.LevelInfo
}
