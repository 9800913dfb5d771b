// Package config defines the settings of an estimation run and how they are read from disk.
package config

import (
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/lfd/lfd"
	"go.viam.com/lfd/logging"
	"go.viam.com/lfd/quadric"
)

// Config describes one run of the estimator.
type Config struct {
	// Scene is the scene file to estimate. Relative paths are resolved against the directory of
	// the config file.
	Scene string `json:"scene" jsonschema:"required"`
	// Output, when set, receives the JSON report of the run.
	Output string `json:"output,omitempty"`
	// MinViews raises the number of frames an object must be detected in.
	MinViews int `json:"min_views,omitempty"`
	// DegenerateTolerance is the relative tolerance used to reject estimates that are not
	// ellipsoids.
	DegenerateTolerance float64 `json:"degenerate_tolerance,omitempty"`
	// Parallel estimates objects concurrently.
	Parallel bool `json:"parallel,omitempty"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Validate returns an error if the config is not usable. path names the config in errors.
func (c *Config) Validate(path string) error {
	if c.Scene == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "scene")
	}
	if c.MinViews < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("min_views must not be negative, got %d", c.MinViews))
	}
	if c.MinViews != 0 && c.MinViews < quadric.MinViews {
		return utils.NewConfigValidationError(path,
			errors.Errorf("min_views must be at least %d, got %d", quadric.MinViews, c.MinViews))
	}
	if c.DegenerateTolerance < 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("degenerate_tolerance must not be negative, got %g", c.DegenerateTolerance))
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// Level is the configured log level, info when unset.
func (c *Config) Level() logging.Level {
	if c.LogLevel == "" {
		return logging.INFO
	}
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// Options are the pipeline options of the run.
func (c *Config) Options(logger logging.Logger) lfd.Options {
	return lfd.Options{
		MinViews:  c.MinViews,
		Tolerance: c.DegenerateTolerance,
		Parallel:  c.Parallel,
		Logger:    logger,
	}
}

// Schema is the JSON schema of config files.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{RequiredFromJSONSchemaTags: true}
	return r.ReflectFromType(reflect.TypeOf(Config{}))
}
