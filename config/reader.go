package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/lfd/logging"
)

// Read reads a config from the given file. Environment variables such as ${SCENE_DIR} are
// expanded before the file is parsed.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(originalPath); err != nil {
		return nil, err
	}
	if originalPath != "" {
		dir := filepath.Dir(originalPath)
		cfg.Scene = resolvePath(dir, cfg.Scene)
		cfg.Output = resolvePath(dir, cfg.Output)
	}
	if logger != nil {
		logger.Debugw("read config", "path", originalPath, "scene", cfg.Scene, "output", cfg.Output)
	}
	return &cfg, nil
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
