package obs

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerOnce sync.Once
	logger     *zap.Logger
)

// Logger returns the shared structured logger used across the agent.
// Defaults to the production JSON encoder; InitDevelopment switches to the
// console encoder and must be called before the first Logger call to take
// effect.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger, _ = zap.NewProduction()
		}
	})
	return logger
}

// InitDevelopment installs a human-readable logger for interactive use.
func InitDevelopment() {
	logger, _ = zap.NewDevelopment()
}

// SetLogger overrides the shared logger. Intended for tests.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	logger = l
}
