package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process-wide logger. Development environments get the
// console encoder; everything else logs JSON at the configured level.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" || env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
