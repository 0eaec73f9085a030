package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/translive/internal/infra/retry"
	"github.com/vietddude/translive/internal/session"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Session.Lease == 0 {
		cfg.Session.Lease = session.DefaultLease
	}
	if cfg.Recovery.ProbeInterval == 0 {
		cfg.Recovery.ProbeInterval = session.DefaultProbeInterval
	}
	if cfg.Recovery.Retry.MaxAttempts == 0 {
		cfg.Recovery.Retry = retry.DefaultConfig
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	if cfg.Speech.Timeout == 0 {
		cfg.Speech.Timeout = 30 * time.Second
	}
	if cfg.Languages.DefaultSource == "" {
		cfg.Languages.DefaultSource = "en"
	}
	if cfg.Languages.DefaultTarget == "" {
		cfg.Languages.DefaultTarget = "es"
	}

	return &cfg, nil
}
