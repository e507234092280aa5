// Package logging builds the zap logger for a scrape run. The operator
// watches the run in a terminal, so coloured console output is the default
// and JSON is reserved for runs whose logs are collected elsewhere.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the run logger. Both modes write to stderr so stdout stays
// free for the manual gate banner.
func New(development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
		// Per-post failures are expected and logged as warnings; stack traces
		// only bury the summary.
		cfg.DisableStacktrace = true
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger (development=%t): %w", development, err)
	}
	return logger, nil
}

// ForRun tags every entry with the run ID and the profile being scraped.
func ForRun(logger *zap.Logger, runID, profileURL string) *zap.Logger {
	return logger.With(zap.String("run_id", runID), zap.String("profile", profileURL))
}
