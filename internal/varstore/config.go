package varstore

import (
	"errors"
	"strings"

	"github.com/imagerelay/imagerelay/internal/platform/env"
)

type Config struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

func ConfigFromEnv() (Config, error) {
	enabled, err := env.Bool("VARSTORE_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	useSSL, err := env.Bool("VARSTORE_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Enabled:   enabled,
		Endpoint:  env.String("VARSTORE_ENDPOINT", "localhost:9000"),
		AccessKey: env.String("VARSTORE_ACCESS_KEY", ""),
		SecretKey: env.String("VARSTORE_SECRET_KEY", ""),
		Region:    env.String("VARSTORE_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    env.String("VARSTORE_BUCKET", "relay-pipeline-vars"),
	}
	if !cfg.Enabled {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("VARSTORE_ENDPOINT is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return errors.New("VARSTORE_ENDPOINT must not include a scheme")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("VARSTORE_ACCESS_KEY is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("VARSTORE_SECRET_KEY is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("VARSTORE_BUCKET is required")
	}
	return nil
}
