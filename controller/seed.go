package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/imagerelay/imagerelay/internal/domain"
)

// seedManifest is the declarative subscription file loaded at startup.
// It is provisioning input only; processing state never round-trips
// through it.
type seedManifest struct {
	Subscriptions []domain.Binding `yaml:"subscriptions"`
}

func loadSeedManifest(path string) ([]domain.Binding, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions file: %w", err)
	}

	var manifest seedManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode subscriptions file: %w", err)
	}

	for i := range manifest.Subscriptions {
		manifest.Subscriptions[i].Normalize()
		if err := manifest.Subscriptions[i].Validate(); err != nil {
			return nil, fmt.Errorf("subscription %d: %w", i, err)
		}
	}
	return manifest.Subscriptions, nil
}

func seedSubscriptions(ctx context.Context, logger *slog.Logger, store bindingWriter, path string) error {
	bindings, err := loadSeedManifest(path)
	if err != nil {
		return err
	}
	for _, binding := range bindings {
		if err := store.Upsert(ctx, binding); err != nil {
			return fmt.Errorf("seed %s/%s: %w", binding.BucketKey, binding.TargetKey, err)
		}
	}
	logger.Info("subscriptions seeded", "file", path, "count", len(bindings))
	return nil
}
