package access

import (
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

type zapLeveledLogger struct {
	sugaredLogger *zap.SugaredLogger
}

// NewLeveledLogger exposes a zap logger through the retryablehttp leveled logging interface.
func NewLeveledLogger(logger *zap.Logger) retryablehttp.LeveledLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return zapLeveledLogger{sugaredLogger: logger.Sugar()}
}

func (logger zapLeveledLogger) Error(message string, keysAndValues ...interface{}) {
	logger.sugaredLogger.Errorw(message, keysAndValues...)
}

func (logger zapLeveledLogger) Info(message string, keysAndValues ...interface{}) {
	logger.sugaredLogger.Infow(message, keysAndValues...)
}

// Debug is used by retryablehttp for per-request tracing.
func (logger zapLeveledLogger) Debug(message string, keysAndValues ...interface{}) {
	logger.sugaredLogger.Debugw(message, keysAndValues...)
}

func (logger zapLeveledLogger) Warn(message string, keysAndValues ...interface{}) {
	logger.sugaredLogger.Warnw(message, keysAndValues...)
}
