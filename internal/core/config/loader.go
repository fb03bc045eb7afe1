package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expands environment variables and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}

	d := &cfg.Defaults
	if d.PollInterval == 0 {
		d.PollInterval = 10 * time.Second
	}
	if d.PollTimeout == 0 {
		d.PollTimeout = 5 * time.Second
	}
	if d.StallThreshold == 0 {
		d.StallThreshold = 60 * time.Second
	}
	if d.FailureThreshold == 0 {
		d.FailureThreshold = 3
	}
	if d.AlertCooldown == 0 {
		d.AlertCooldown = 5 * time.Minute
	}
	if d.MissedBlocksThreshold == 0 {
		d.MissedBlocksThreshold = 10
	}

	cfg.Dispatch = cfg.Dispatch.WithDefaults()
	cfg.GitHub = cfg.GitHub.WithDefaults()
}
