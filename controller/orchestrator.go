package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/imagerelay/imagerelay/internal/domain"
	"github.com/imagerelay/imagerelay/internal/repo"
	"github.com/imagerelay/imagerelay/internal/telemetry"
)

type digestResolver interface {
	ResolveDigest(ctx context.Context, repository, tag, registryID string) (string, error)
}

type targetProcessor interface {
	Process(ctx context.Context, item workItem) domain.Result
}

// orchestrator drives one invocation: resolve the digest, look up the
// subscribed bindings, fan out over a bounded worker pool and collect
// one result per binding regardless of individual outcomes.
type orchestrator struct {
	logger    *slog.Logger
	cfg       Config
	store     repo.BindingRepository
	resolver  digestResolver
	processor targetProcessor
	metrics   *telemetry.Sink
}

func (o *orchestrator) HandleEvent(ctx context.Context, event domain.ImagePushEvent) domain.Invocation {
	correlationID := event.ID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := o.logger.With("correlation_id", correlationID)

	if err := event.Validate(); err != nil {
		logger.Error("ignoring incomplete event", "error", err)
		return domain.Invocation{Status: domain.InvocationIgnored}
	}

	repository := event.Repository()
	tag := event.Tag()
	registryID := event.RegistryID()
	logger.Info("event received", "repository", repository, "tag", tag, "registry", registryID)

	start := time.Now()

	digest, err := o.resolver.ResolveDigest(ctx, repository, tag, registryID)
	if err != nil {
		logger.Error("digest resolution failed", "error", err)
		return domain.Invocation{Status: domain.InvocationError, Reason: "no_digest"}
	}

	bucketKey := event.BucketKey()
	targets, err := o.store.TargetsForBucket(ctx, bucketKey)
	if err != nil {
		logger.Error("target lookup failed", "bucket_key", bucketKey, "error", err)
		return domain.Invocation{Status: domain.InvocationError, Reason: "targets_unavailable"}
	}
	if len(targets) == 0 {
		logger.Info("no targets subscribed", "bucket_key", bucketKey)
		return domain.Invocation{Status: domain.InvocationNoTargets}
	}

	// One slot per binding; workers write only their own index, so the
	// pool shares no mutable state and a failed sibling cannot block or
	// cancel anyone.
	results := make([]domain.Result, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.MaxParallelTargets)
	for i, binding := range targets {
		g.Go(func() error {
			results[i] = o.processor.Process(ctx, workItem{
				binding:       binding,
				repository:    repository,
				tag:           tag,
				registryID:    registryID,
				digest:        digest,
				correlationID: correlationID,
			})
			return nil
		})
	}
	_ = g.Wait()

	for i, result := range results {
		mode := targets[i].Mode
		if mode == "" {
			mode = o.cfg.DefaultMode
		}
		o.metrics.RecordTargetResult(ctx, repository, tag, mode, result.Status)
		if result.Status == domain.StatusError {
			logger.Error("target failed", "target", result.Target, "error", result.Error)
		} else {
			logger.Info("target processed", "target", result.Target, "status", result.Status)
		}
	}
	o.metrics.RecordInvocation(ctx, time.Since(start), len(targets))

	return domain.Invocation{Status: domain.InvocationDone, Results: results}
}
