package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/imagerelay/imagerelay/internal/creds"
	"github.com/imagerelay/imagerelay/internal/domain"
	"github.com/imagerelay/imagerelay/internal/pipeline"
	"github.com/imagerelay/imagerelay/internal/repo"
)

// statusClient reports the external status of one pipeline execution.
type statusClient interface {
	ExecutionStatus(ctx context.Context, name, executionID string) (string, error)
}

type credentialIssuer interface {
	Assume(ctx context.Context, roleArn string) (creds.Credentials, error)
}

// statusClientFactory builds a status client bound to a region and an
// optional scoped identity.
type statusClientFactory interface {
	StatusClient(ctx context.Context, region string, scoped *creds.Credentials) (statusClient, error)
}

type reconciler struct {
	logger   *slog.Logger
	store    repo.BindingRepository
	issuer   credentialIssuer
	clients  statusClientFactory
	region   string
	interval time.Duration
	batch    int
}

func startReconciler(ctx context.Context, r *reconciler) {
	if r.store == nil || r.clients == nil {
		return
	}
	if r.interval <= 0 {
		r.interval = time.Minute
	}
	if r.batch <= 0 {
		r.batch = 200
	}

	go r.run(ctx)
}

func (r *reconciler) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scanOnce(ctx)
		}
	}
}

func (r *reconciler) scanOnce(ctx context.Context) {
	bindings, err := r.store.ListPendingPipelineExecutions(ctx, r.batch)
	if err != nil {
		r.log("pending scan failed", "error", err)
		return
	}

	for _, binding := range bindings {
		if ctx.Err() != nil {
			return
		}
		r.reconcileOne(ctx, binding)
	}
}

// reconcileOne observes one execution and writes back its status only
// when the observation changed it. Failures are isolated per binding so
// one broken execution never stalls the rest of the batch.
func (r *reconciler) reconcileOne(ctx context.Context, binding domain.Binding) {
	if domain.IsTerminalPipelineStatus(binding.LastStatus) {
		return
	}
	name := strings.TrimSpace(binding.Pipeline.Name)
	executionID := strings.TrimSpace(binding.LastExecutionID)
	if name == "" || executionID == "" {
		return
	}

	var scoped *creds.Credentials
	if arn := strings.TrimSpace(binding.Target.AssumeRoleArn); arn != "" {
		c, err := r.issuer.Assume(ctx, arn)
		if err != nil {
			r.log("assume role failed", "target", binding.TargetKey, "error", err)
			return
		}
		scoped = &c
	}

	region := binding.Target.Region
	if region == "" {
		region = r.region
	}
	client, err := r.clients.StatusClient(ctx, region, scoped)
	if err != nil {
		r.log("status client failed", "target", binding.TargetKey, "error", err)
		return
	}

	status := domain.PipelineStatusNotFound
	external, err := client.ExecutionStatus(ctx, name, executionID)
	switch {
	case err == nil:
		status = domain.MapPipelineStatus(external)
	case errors.Is(err, pipeline.ErrExecutionNotFound):
		// Expired or deleted execution: terminal, stop polling it.
	default:
		r.log("execution status failed",
			"pipeline", name, "execution_id", executionID, "error", err)
		return
	}

	if status == binding.LastStatus {
		return
	}
	if err := r.store.UpdateExecutionStatus(ctx, binding.BucketKey, binding.TargetKey, status); err != nil {
		r.log("status write failed",
			"pipeline", name, "execution_id", executionID, "status", status, "error", err)
		return
	}
	r.logger.Info("execution status reconciled",
		"component", "reconciler",
		"pipeline", name,
		"execution_id", executionID,
		"status", status,
		"terminal", domain.IsTerminalPipelineStatus(status))
}

func (r *reconciler) log(msg string, attrs ...any) {
	if r.logger == nil {
		return
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		if key, ok := attrs[i].(string); !ok || key != "error" {
			continue
		}
		if err, ok := attrs[i+1].(error); ok && errors.Is(err, context.Canceled) {
			return
		}
	}
	fields := []any{"component", "reconciler"}
	fields = append(fields, attrs...)
	r.logger.Warn(msg, fields...)
}
