// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// GlobalConfig is the top-level daemon configuration. It maps to the
// `packetcore:` root key in YAML.
type GlobalConfig struct {
	Node     NodeConfig      `mapstructure:"node"`
	Control  ControlConfig   `mapstructure:"control"`
	Log      LogConfig       `mapstructure:"log"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	LiveView LiveViewConfig  `mapstructure:"liveview"`
	Sessions []SessionConfig `mapstructure:"sessions"`
}

// NodeConfig identifies the host this daemon runs on.
type NodeConfig struct {
	Hostname string `mapstructure:"hostname"` // empty = os.Hostname()
}

// ControlConfig contains local control-plane settings for the CLI host.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// LogConfig controls the operator-facing structured log (see internal/log).
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// MetricsConfig controls the in-process stats HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// LiveViewConfig controls the websocket bridge that streams a session's
// status and log events to browser clients.
type LiveViewConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// SessionConfig describes one capture Session to bring up at startup.
type SessionConfig struct {
	Namespace   string            `mapstructure:"namespace"`
	Interface   string            `mapstructure:"interface"`
	Backend     string            `mapstructure:"backend"` // pcap (default) or afpacket
	Promiscuous bool              `mapstructure:"promiscuous"`
	Snaplen     int               `mapstructure:"snaplen"`
	BPF         string            `mapstructure:"bpf"`
	Threads     int               `mapstructure:"threads"`
	Filters     map[string]string `mapstructure:"filters"`
}

// configRoot is the top-level wrapper matching the YAML structure
// `packetcore: ...`.
type configRoot struct {
	PacketCore GlobalConfig `mapstructure:"packetcore"`
}

// Load loads configuration from file. The YAML file uses `packetcore:`
// as root key; env vars use PACKETCORE_ prefix (e.g.
// PACKETCORE_LOG_LEVEL overrides packetcore.log.level).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.PacketCore

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("packetcore.control.pid_file", "/var/run/packetcore.pid")
	v.SetDefault("packetcore.control.socket", "/var/run/packetcore.sock")

	v.SetDefault("packetcore.log.level", "info")
	v.SetDefault("packetcore.log.format", "json")
	v.SetDefault("packetcore.log.outputs.file.enabled", false)
	v.SetDefault("packetcore.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("packetcore.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("packetcore.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("packetcore.log.outputs.file.rotation.compress", true)

	v.SetDefault("packetcore.metrics.enabled", true)
	v.SetDefault("packetcore.metrics.listen", ":9091")
	v.SetDefault("packetcore.metrics.path", "/stats")

	v.SetDefault("packetcore.liveview.enabled", false)
	v.SetDefault("packetcore.liveview.listen", ":9092")
	v.SetDefault("packetcore.liveview.path", "/live")
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults not expressible as static viper defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	for i := range cfg.Sessions {
		if cfg.Sessions[i].Namespace == "" {
			return fmt.Errorf("sessions[%d].namespace is required", i)
		}
		if cfg.Sessions[i].Threads <= 0 {
			cfg.Sessions[i].Threads = 4
		}
		if cfg.Sessions[i].Snaplen <= 0 {
			cfg.Sessions[i].Snaplen = 65535
		}
		if cfg.Sessions[i].Backend == "" {
			cfg.Sessions[i].Backend = "pcap"
		}
		if cfg.Sessions[i].Backend != "pcap" && cfg.Sessions[i].Backend != "afpacket" {
			return fmt.Errorf("sessions[%d].backend must be pcap or afpacket, got %q", i, cfg.Sessions[i].Backend)
		}
	}

	return nil
}
