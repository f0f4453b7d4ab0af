package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/saiset-co/estate-client/types"
)

var customLoggerCreators = make(map[string]types.LoggerCreator)

func RegisterLogger(loggerName string, creator types.LoggerCreator) {
	customLoggerCreators[loggerName] = creator
}

// NewLogger builds the logger named by config.Type. ESTATE_LOG_LEVEL overrides the level.
func NewLogger(loggerConfig *types.LoggerConfig) (types.Logger, error) {
	if loggerConfig == nil {
		return nil, types.ErrLoggerConfigInvalid
	}

	if level := strings.TrimSpace(os.Getenv("ESTATE_LOG_LEVEL")); level != "" {
		overridden := *loggerConfig
		overridden.Level = level
		loggerConfig = &overridden
	}

	loggerName := "default"
	if loggerConfig.Type != "" {
		loggerName = loggerConfig.Type
	}

	switch loggerName {
	case "default":
		return NewDefaultLogger(loggerConfig)
	case "nop":
		return NewNopLogger(), nil
	default:
		if creator, exists := customLoggerCreators[loggerName]; exists {
			return creator(loggerConfig.Config)
		}
		return nil, types.Errorf(types.ErrLoggerTypeUnknown, "logger type: %s", loggerName)
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() types.Logger {
	return NewZapWrapper(zap.NewNop())
}

// Sync flushes buffered entries if the logger supports it.
func Sync(logger types.Logger) {
	if syncer, hasSyncer := logger.(interface{ Sync() error }); hasSyncer {
		_ = syncer.Sync()
	}
}
