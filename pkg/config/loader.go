package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Load reads the configuration from the given YAML file, applies defaults
// for omitted fields, and validates the result. A missing file is not an
// error: the defaults are returned so the agent works out of the box.
func Load(path string) (Config, error) {
	cfg := Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = Default()
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := validate.Struct(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// EnsureDirs creates the profile and downloads directories if absent.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.ProfileDir, 0750); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}
	if err := os.MkdirAll(c.DownloadsDir, 0750); err != nil {
		return fmt.Errorf("failed to create downloads dir: %w", err)
	}
	return nil
}
