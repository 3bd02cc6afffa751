package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// config is read from STORE_* environment variables.
type config struct {
	Backend string `envconfig:"BACKEND" default:"redis"`

	// redis
	Addr         string        `envconfig:"ADDR" default:"localhost:6379"`
	Username     string        `envconfig:"USERNAME"`
	Password     string        `envconfig:"PASSWORD"`
	DB           int           `envconfig:"DB" default:"0"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"3s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"2s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"2s"`

	// bolt
	Path string `envconfig:"PATH" default:"storeclient.db"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
}

func loadConfig() (*config, error) {
	var cfg config
	if err := envconfig.Process("store", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	switch cfg.Backend {
	case "redis", "bolt":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want redis or bolt)", cfg.Backend)
	}
	return &cfg, nil
}
