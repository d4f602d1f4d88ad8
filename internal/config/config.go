// Package config loads server settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all pulse configuration.
type Config struct {
	// HTTP listen port
	Port int `yaml:"port"`

	// PostgreSQL connection string. Empty means SQLite.
	DatabaseURL string `yaml:"database_url"`

	// SQLite database path, used when DatabaseURL is empty.
	SQLitePath string `yaml:"sqlite_path"`

	// Bearer token signing secret
	JWTSecret string `yaml:"jwt_secret"`

	// Initial admin account password, used only when seeding an empty DB
	AdminPassword string `yaml:"admin_password"`

	Mail MailConfig `yaml:"mail"`
}

// MailConfig configures outgoing notification email.
type MailConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:       8000,
		SQLitePath: "pulse.db",
		Mail: MailConfig{
			Server:   "smtp.gmail.com",
			Port:     587,
			FromName: "Pulse",
		},
	}
}

// Load reads the config file at path (when it exists) and applies
// environment overrides. A missing file is not an error; a malformed
// one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("PULSE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("PULSE_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("PULSE_ADMIN_PASSWORD"); v != "" {
		c.AdminPassword = v
	}
	if v := os.Getenv("MAIL_USERNAME"); v != "" {
		c.Mail.Username = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv("MAIL_FROM"); v != "" {
		c.Mail.From = v
	}
	if v := os.Getenv("MAIL_SERVER"); v != "" {
		c.Mail.Server = v
	}
	if v := os.Getenv("MAIL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Mail.Port = p
		}
	}
}
