package bios

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zap levels are int8
const maxVerbosity = 127

// NewLogger returns a logr.Logger writing to stderr. zapr maps logr's V(n) to
// zap level -n, so verbosity n enables everything up to V(n).
func NewLogger(verbosity int) logr.Logger {
	verbosity = clampVerbosity(verbosity)

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(zl)
}

func clampVerbosity(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxVerbosity {
		return maxVerbosity
	}
	return v
}
