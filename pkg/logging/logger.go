package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. The "local" environment gets a
// human-readable development logger, everything else JSON at info level.
func NewLogger(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("service", "ekaya-datatools")), nil
}
