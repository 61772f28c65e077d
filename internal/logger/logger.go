package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the application logger. Production writes JSON at info level,
// anything else writes colored console output at debug level. A non-empty
// level overrides the default.
func New(env, level string) (*zap.Logger, error) {
	lvl, err := parseLevel(env, level)
	if err != nil {
		return nil, err
	}

	core := NewCore(env, lvl, os.Stdout)
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	), nil
}

// NewCore builds the encoder core used by New, writing to w.
func NewCore(env string, level zapcore.Level, w io.Writer) zapcore.Core {
	var encoder zapcore.Encoder
	if env == "production" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
}

func parseLevel(env, level string) (zapcore.Level, error) {
	if level != "" {
		return zapcore.ParseLevel(level)
	}
	if env == "production" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.DebugLevel, nil
}
