// Package logging builds the engine's zap logger and keeps secrets out of
// log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger appropriate for the given environment.
// Production and staging get the JSON encoder at info level; everything
// else gets the development console encoder at debug level.
func NewLogger(env string) (*zap.Logger, error) {
	var logConfig zap.Config
	switch env {
	case "production", "staging":
		logConfig = zap.NewProductionConfig()
	default:
		logConfig = zap.NewDevelopmentConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
