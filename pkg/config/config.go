// Package config loads YAML configuration files with environment variable
// expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that can check themselves
// after loading.
type Validator interface {
	Validate() error
}

// Load reads filename, expands ${VAR} references from the environment, and
// unmarshals the result into target. If target implements Validator, the
// loaded configuration is validated before returning.
func Load(filename string, target any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("parse config file %s: %w", filename, err)
	}

	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// LoadIfExists behaves like Load but leaves target untouched (and returns
// nil) when the file does not exist, so callers can fall back to defaults.
func LoadIfExists(filename string, target any) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return Load(filename, target)
}
