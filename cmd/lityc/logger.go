package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newCLILogger builds the operational zap logger commands report
// firing/compile activity through, independent of internal/logging's
// categorized file trail (which is written only in debug mode).
func newCLILogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.Encoding = "console"
	zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return zc.Build()
}
