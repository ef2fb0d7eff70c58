// Package config содержит логику чтения конфигурации сервиса синхронизации.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса синхронизации бронирований.
type Config struct {
	RunAddress              string        `env:"RUN_ADDRESS"`
	DatabaseURI             string        `env:"DATABASE_URI"`
	IdentityProviderAddress string        `env:"IDENTITY_PROVIDER_ADDRESS"`
	SessionToken            string        `env:"SESSION_TOKEN"`
	IdentityPollInterval    time.Duration `env:"IDENTITY_POLL_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envIdentityAddress := cfg.IdentityProviderAddress
	envSessionToken := cfg.SessionToken
	envPollInterval := cfg.IdentityPollInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.IdentityProviderAddress, "i", "", "identity provider address")
	flag.StringVar(&cfg.SessionToken, "t", "", "session token for the identity provider")
	flag.DurationVar(&cfg.IdentityPollInterval, "p", 5*time.Second, "identity poll interval")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envIdentityAddress != "" {
		cfg.IdentityProviderAddress = envIdentityAddress
	}
	if envSessionToken != "" {
		cfg.SessionToken = envSessionToken
	}
	if envPollInterval != 0 {
		cfg.IdentityPollInterval = envPollInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.IdentityPollInterval <= 0 {
		cfg.IdentityPollInterval = 5 * time.Second
	}

	return cfg, nil
}
