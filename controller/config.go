package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/imagerelay/imagerelay/internal/domain"
	"github.com/imagerelay/imagerelay/internal/functions"
	"github.com/imagerelay/imagerelay/internal/platform/env"
)

// Config is the controller's immutable configuration, built once in main
// and threaded into every component.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	Region                string
	MaxParallelTargets    int
	DefaultMode           domain.Mode
	UpdateStrategy        functions.Strategy
	AssumeRoleSessionName string
	MetricsNamespace      string
	SubscriptionsFile     string
}

func ConfigFromEnv() (Config, error) {
	shutdownTimeout, err := env.Duration("RELAY_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxParallel, err := env.Int("RELAY_MAX_PARALLEL_TARGETS", 10)
	if err != nil {
		return Config{}, err
	}
	mode, err := domain.ParseMode(env.String("RELAY_DEFAULT_MODE", string(domain.ModeDirect)))
	if err != nil {
		return Config{}, fmt.Errorf("RELAY_DEFAULT_MODE: %w", err)
	}
	if mode == "" {
		mode = domain.ModeDirect
	}

	cfg := Config{
		Addr:                  env.String("RELAY_HTTP_ADDR", ":8084"),
		ShutdownTimeout:       shutdownTimeout,
		Region:                env.String("AWS_REGION", "us-east-1"),
		MaxParallelTargets:    maxParallel,
		DefaultMode:           mode,
		UpdateStrategy:        functions.ParseStrategy(env.String("RELAY_UPDATE_STRATEGY", string(functions.StrategyPublishAndAlias))),
		AssumeRoleSessionName: env.String("RELAY_ASSUME_ROLE_SESSION_NAME", "imagerelay"),
		MetricsNamespace:      env.String("RELAY_METRICS_NAMESPACE", "ImageRelay"),
		SubscriptionsFile:     env.String("RELAY_SUBSCRIPTIONS_FILE", ""),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("RELAY_HTTP_ADDR is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("RELAY_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Region == "" {
		return errors.New("AWS_REGION is required")
	}
	if c.MaxParallelTargets < 1 {
		return errors.New("RELAY_MAX_PARALLEL_TARGETS must be >= 1")
	}
	switch c.DefaultMode {
	case domain.ModeDirect, domain.ModePipeline:
	default:
		return fmt.Errorf("unsupported default mode %q", c.DefaultMode)
	}
	return nil
}
