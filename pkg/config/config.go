// Package config defines the application configuration and its loader.
package config

import (
	"fmt"

	"github.com/finbridge/watchsync/pkg/health"
	"github.com/finbridge/watchsync/pkg/kvs"
	"github.com/finbridge/watchsync/pkg/validator"
)

// Config represents the application configuration
type Config struct {
	Service   ServiceConfig    `yaml:"service" json:"service"`
	Admin     AdminConfig      `yaml:"admin" json:"admin"`
	Storage   kvs.Config       `yaml:"storage" json:"storage"`
	Monitor   health.Config    `yaml:"monitor" json:"monitor"`
	Validator validator.Config `yaml:"validator" json:"validator"`
	Logging   LoggingConfig    `yaml:"logging" json:"logging"`
}

// ServiceConfig contains service-level settings
type ServiceConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// AdminConfig contains the admin HTTP API settings
type AdminConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Addr returns the listen address in host:port form
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string      `yaml:"level" json:"level"` // "debug", "info", "warn", "error" (default: "info")
	Color bool        `yaml:"color" json:"color"`
	File  *FileConfig `yaml:"file" json:"file"` // Optional file output with rotation
}

// FileConfig contains log file rotation settings
type FileConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return ErrServiceNameRequired
	}

	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Admin.Port)
	}

	switch c.Storage.Type {
	case "", "memory", "leveldb":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return ErrRedisAddrRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStorageType, c.Storage.Type)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}
