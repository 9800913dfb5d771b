package config

import (
	"go.uber.org/zap/zapcore"

	"go.viam.com/lfd/logging"
)

// InitLoggingSettings applies the configured level to logger. A debug flag from the command line
// wins over the config and also turns on debug output for every other logger.
func InitLoggingSettings(logger logging.Logger, cfg *Config, cmdLineDebugFlag bool) {
	level := logging.INFO
	if cfg != nil {
		level = cfg.Level()
	}
	if cmdLineDebugFlag {
		level = logging.DEBUG
	}
	if level == logging.DEBUG {
		logging.GlobalLogLevel.SetLevel(zapcore.DebugLevel)
	} else {
		logging.GlobalLogLevel.SetLevel(zapcore.InfoLevel)
	}
	logger.SetLevel(level)
	logger.Debugw("log level initialized", "level", level)
}
