// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger at level writing to stdout. Production uses JSON; anything else uses
// the console encoder. An empty level means info.
func New(level, env string) (*zap.Logger, error) {
	return NewWithSink(level, env, zapcore.AddSync(os.Stdout))
}

// NewWithSink is New with an explicit output.
func NewWithSink(level, env string, out zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if s := strings.TrimSpace(level); s != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(s))
		if err != nil {
			return nil, fmt.Errorf("logger: invalid level %q", level)
		}
		lvl = parsed
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if env == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}
	core := zapcore.NewCore(encoder, out, lvl)
	return zap.New(core, zap.AddCaller()), nil
}
