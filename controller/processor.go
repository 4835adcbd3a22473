package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imagerelay/imagerelay/internal/creds"
	"github.com/imagerelay/imagerelay/internal/domain"
	"github.com/imagerelay/imagerelay/internal/functions"
	"github.com/imagerelay/imagerelay/internal/pipeline"
	"github.com/imagerelay/imagerelay/internal/repo"
)

type credentialIssuer interface {
	Assume(ctx context.Context, roleArn string) (creds.Credentials, error)
}

type functionUpdater interface {
	Apply(ctx context.Context, functionName, imageURI, aliasName string, strategy functions.Strategy) (functions.Outcome, error)
}

type pipelineStarter interface {
	Start(ctx context.Context, name string, vars pipeline.Variables) (string, error)
}

// clientFactory binds collaborator clients to a target's region and
// optional scoped credentials.
type clientFactory interface {
	FunctionUpdater(ctx context.Context, region string, scoped *creds.Credentials) (functionUpdater, error)
	PipelineStarter(ctx context.Context, region string, scoped *creds.Credentials) (pipelineStarter, error)
}

// workItem is one binding paired with the invocation-wide inputs the
// processor needs; workers receive it by value and share nothing else.
type workItem struct {
	binding       domain.Binding
	repository    string
	tag           string
	registryID    string
	digest        string
	correlationID string
}

// processor applies one resolved digest to one binding. Every failure is
// converted to an error result at this boundary; nothing propagates to
// the orchestrator.
type processor struct {
	logger  *slog.Logger
	cfg     Config
	store   repo.BindingRepository
	issuer  credentialIssuer
	clients clientFactory
}

func (p *processor) Process(ctx context.Context, item workItem) (result domain.Result) {
	target := item.binding.Identifier()
	defer func() {
		if v := recover(); v != nil {
			p.logger.Error("target processing panicked",
				"target", target,
				"correlation_id", item.correlationID,
				"panic", v,
			)
			result = domain.ErrorResult(target, fmt.Errorf("panic: %v", v))
		}
	}()

	binding := item.binding
	mode := binding.Mode
	if mode == "" {
		mode = p.cfg.DefaultMode
	}

	var scoped *creds.Credentials
	if arn := strings.TrimSpace(binding.Target.AssumeRoleArn); arn != "" {
		assumed, err := p.issuer.Assume(ctx, arn)
		if err != nil {
			return domain.ErrorResult(target, fmt.Errorf("assume role: %w", err))
		}
		scoped = &assumed
	}

	region := binding.Target.Region
	if region == "" {
		region = p.cfg.Region
	}
	imageURI := domain.ImageURI(item.registryID, region, item.repository, item.digest)

	if mode == domain.ModePipeline {
		return p.processPipeline(ctx, item, binding, region, scoped, imageURI)
	}
	return p.processDirect(ctx, item, binding, region, scoped, imageURI)
}

func (p *processor) processDirect(ctx context.Context, item workItem, binding domain.Binding, region string, scoped *creds.Credentials, imageURI string) domain.Result {
	functionName := binding.Target.FunctionName
	if strings.TrimSpace(functionName) == "" {
		return domain.ErrorResult(binding.Identifier(), fmt.Errorf("direct binding has no function name"))
	}

	// Single conditional claim, never retried: the loser of a duplicate
	// trigger race stops here without touching the runtime.
	claimed, err := p.store.ClaimDigest(ctx, binding.BucketKey, binding.TargetKey, item.digest)
	if err != nil {
		return domain.ErrorResult(functionName, fmt.Errorf("idempotency gate: %w", err))
	}
	if !claimed {
		p.logger.Info("digest already claimed",
			"function", functionName,
			"digest", item.digest,
			"correlation_id", item.correlationID,
		)
		return domain.Result{Target: functionName, Status: domain.StatusNoopIdempotent, NewDigest: item.digest}
	}

	updater, err := p.clients.FunctionUpdater(ctx, region, scoped)
	if err != nil {
		p.recordDirect(ctx, binding, item.digest, domain.StatusError)
		return domain.ErrorResult(functionName, fmt.Errorf("function client: %w", err))
	}

	outcome, applyErr := updater.Apply(ctx, functionName, imageURI, binding.Target.AliasName, p.cfg.UpdateStrategy)
	status := outcome.Status
	if applyErr != nil {
		status = domain.StatusError
	}
	p.recordDirect(ctx, binding, item.digest, status)

	if applyErr != nil {
		return domain.ErrorResult(functionName, applyErr)
	}
	return domain.Result{
		Target:         functionName,
		Status:         outcome.Status,
		PreviousDigest: outcome.PreviousDigest,
		NewDigest:      outcome.NewDigest,
		Version:        outcome.Version,
		Alias:          outcome.Alias,
	}
}

func (p *processor) processPipeline(ctx context.Context, item workItem, binding domain.Binding, region string, scoped *creds.Credentials, imageURI string) domain.Result {
	name := strings.TrimSpace(binding.Pipeline.Name)
	if name == "" {
		return domain.ErrorResult(binding.Identifier(), fmt.Errorf("pipeline name is required"))
	}

	starter, err := p.clients.PipelineStarter(ctx, region, scoped)
	if err != nil {
		return domain.ErrorResult(name, fmt.Errorf("pipeline client: %w", err))
	}

	vars := pipeline.Variables{
		pipeline.VarImageURI:     imageURI,
		pipeline.VarFunctionName: binding.Target.FunctionName,
		pipeline.VarAliasName:    binding.Target.AliasName,
		pipeline.VarDeployApp:    binding.CodeDeploy.ApplicationName,
		pipeline.VarDeployGroup:  binding.CodeDeploy.DeploymentGroupName,
		pipeline.VarDeployConfig: binding.CodeDeploy.DeploymentConfigName,
	}

	executionID, err := starter.Start(ctx, name, vars)
	if err != nil {
		return domain.ErrorResult(name, err)
	}

	if err := p.store.RecordPipelineExecution(ctx, binding.BucketKey, binding.TargetKey, executionID, domain.PipelineStatusStarted); err != nil {
		p.logger.Warn("record pipeline execution failed",
			"pipeline", name,
			"execution_id", executionID,
			"correlation_id", item.correlationID,
			"error", err,
		)
	}

	return domain.Result{
		Target:      name,
		Status:      domain.StatusStarted,
		Pipeline:    name,
		ExecutionID: executionID,
		NewDigest:   item.digest,
	}
}

func (p *processor) recordDirect(ctx context.Context, binding domain.Binding, digest string, status domain.Status) {
	if err := p.store.RecordDirectResult(ctx, binding.BucketKey, binding.TargetKey, digest, string(status)); err != nil {
		p.logger.Warn("record direct result failed",
			"target_key", binding.TargetKey,
			"status", status,
			"error", err,
		)
	}
}
