package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for protegectl: one panel, its
// credentials, and the logging knobs a deployment might override.
type Config struct {
	Panel PanelConfig `yaml:"panel"`
	Logs  LogsConfig  `yaml:"logs"`
}

// PanelConfig addresses and authenticates against the ACS panel.
type PanelConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	PIN  string `yaml:"pin"`

	// Checksum selects "sum8" or "crc16". Load defaults it to "sum8" when
	// absent and does not validate it; protegectl falls back to sum8 for
	// any other value.
	Checksum string `yaml:"checksum"`
}

// LogsConfig controls logrus's output.
type LogsConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the YAML file at path, applying defaults first so
// a sparse config file only needs to override what it cares about.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Panel: PanelConfig{
			Port:     4001,
			Checksum: "sum8",
		},
		Logs: LogsConfig{
			Level: "info",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if cfg.Panel.Host == "" {
		return nil, fmt.Errorf("config: panel.host is required")
	}
	if cfg.Panel.PIN == "" {
		return nil, fmt.Errorf("config: panel.pin is required")
	}

	return cfg, nil
}
