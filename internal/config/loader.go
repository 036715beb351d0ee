package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticConfig is the flat, non-viper configuration shape used by the
// standalone CLI when a single daemon config tree is unnecessary: one
// file, one Session, no env overrides.
type StaticConfig struct {
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// LoadStatic reads a StaticConfig from a plain YAML file.
func LoadStatic(path string) (*StaticConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg StaticConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Session.Threads <= 0 {
		cfg.Session.Threads = 4
	}
	if cfg.Session.Snaplen <= 0 {
		cfg.Session.Snaplen = 65535
	}

	return &cfg, nil
}
