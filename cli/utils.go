package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/lfd/config"
	"go.viam.com/lfd/logging"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\x1b[1;33mWarning:\x1b[0m "+format+"\n", a...)
}

// newLogger returns a logger writing to the app's error writer at the configured level.
func newLogger(c *cli.Context, cfg *config.Config) logging.Logger {
	logger := logging.NewBlankLogger("lfd")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	config.InitLoggingSettings(logger, cfg, c.Bool(flagDebug))
	return logger
}

// runConfig reads the config named by --config, if any, and applies the command line flags on
// top of it.
func runConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String(flagConfig); path != "" {
		read, err := config.Read(path, nil)
		if err != nil {
			return nil, err
		}
		cfg = read
	}
	if c.IsSet(flagScene) {
		cfg.Scene = c.String(flagScene)
	}
	if c.IsSet(flagOutput) {
		cfg.Output = c.String(flagOutput)
	}
	if c.IsSet(flagMinViews) {
		cfg.MinViews = c.Int(flagMinViews)
	}
	if c.IsSet(flagParallel) {
		cfg.Parallel = c.Bool(flagParallel)
	}
	if c.IsSet(flagTolerance) {
		cfg.DegenerateTolerance = c.Float64(flagTolerance)
	}
	if err := cfg.Validate("command line"); err != nil {
		return nil, err
	}
	return cfg, nil
}
