// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader resolves the configuration with precedence defaults < file < environment.
type Loader struct {
	configPath string
	lookup     func(string) (string, bool)
}

// NewLoader creates a loader. An empty configPath means defaults plus environment.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath, lookup: os.LookupEnv}
}

// Path returns the config file path, possibly empty.
func (l *Loader) Path() string { return l.configPath }

// Load builds and validates a Config.
func (l *Loader) Load() (Config, error) {
	cfg := Default()
	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := decodeStrict(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg, l.lookup)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeStrict overlays the YAML document in data onto cfg. Unknown keys fail.
func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) && isUnknownField(typeErr) {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	return nil
}

func isUnknownField(err *yaml.TypeError) bool {
	for _, msg := range err.Errors {
		if strings.Contains(msg, "not found in type") {
			return true
		}
	}
	return false
}
