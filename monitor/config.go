package main

import (
	"errors"
	"time"

	"github.com/imagerelay/imagerelay/internal/platform/env"
)

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	Region                string
	ScanInterval          time.Duration
	ScanBatch             int
	AssumeRoleSessionName string
}

func ConfigFromEnv() (Config, error) {
	shutdownTimeout, err := env.Duration("MONITOR_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	scanInterval, err := env.Duration("MONITOR_SCAN_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	scanBatch, err := env.Int("MONITOR_SCAN_BATCH", 200)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Addr:                  env.String("MONITOR_HTTP_ADDR", ":8085"),
		ShutdownTimeout:       shutdownTimeout,
		Region:                env.String("AWS_REGION", "us-east-1"),
		ScanInterval:          scanInterval,
		ScanBatch:             scanBatch,
		AssumeRoleSessionName: env.String("RELAY_ASSUME_ROLE_SESSION_NAME", "imagerelay"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("MONITOR_HTTP_ADDR is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("MONITOR_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Region == "" {
		return errors.New("AWS_REGION is required")
	}
	if c.ScanInterval <= 0 {
		return errors.New("MONITOR_SCAN_INTERVAL must be positive")
	}
	if c.ScanBatch < 1 {
		return errors.New("MONITOR_SCAN_BATCH must be >= 1")
	}
	return nil
}
