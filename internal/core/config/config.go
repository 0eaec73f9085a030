package config

import (
	redisclient "github.com/vietddude/translive/internal/infra/redis"
	"github.com/vietddude/translive/internal/infra/retry"
	"github.com/vietddude/translive/internal/infra/speech"
	"github.com/vietddude/translive/internal/infra/storage/postgres"
	"github.com/vietddude/translive/internal/session"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig           `yaml:"server"`
	Redis     redisclient.Config     `yaml:"redis"`
	Database  postgres.Config        `yaml:"database"`
	Logging   LoggingConfig          `yaml:"logging"`
	Session   session.Config         `yaml:"session"`
	Recovery  session.RecoveryConfig `yaml:"recovery"`
	Speech    speech.Config          `yaml:"speech"`
	Retry     retry.Config           `yaml:"retry"`
	Languages LanguagesConfig        `yaml:"languages"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// LanguagesConfig holds default translation languages, used when a request
// does not name its own pair.
type LanguagesConfig struct {
	DefaultSource string `yaml:"default_source"`
	DefaultTarget string `yaml:"default_target"`
}
