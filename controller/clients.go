package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/imagerelay/imagerelay/internal/creds"
	"github.com/imagerelay/imagerelay/internal/functions"
	"github.com/imagerelay/imagerelay/internal/pipeline"
	"github.com/imagerelay/imagerelay/internal/platform/awsx"
	"github.com/imagerelay/imagerelay/internal/varstore"
)

// awsClientFactory builds per-target collaborator clients. Each target
// may live in another region and account, so clients cannot be shared
// across the fan-out.
type awsClientFactory struct {
	logger *slog.Logger
	vars   varstore.Store
}

func (f *awsClientFactory) config(ctx context.Context, region string, scoped *creds.Credentials) (aws.Config, error) {
	cfg, err := awsx.LoadConfig(ctx, region)
	if err != nil {
		return aws.Config{}, fmt.Errorf("aws config for %s: %w", region, err)
	}
	if scoped != nil {
		cfg = awsx.WithStaticCredentials(cfg, scoped.AccessKeyID, scoped.SecretAccessKey, scoped.SessionToken)
	}
	return cfg, nil
}

func (f *awsClientFactory) FunctionUpdater(ctx context.Context, region string, scoped *creds.Credentials) (functionUpdater, error) {
	cfg, err := f.config(ctx, region, scoped)
	if err != nil {
		return nil, err
	}
	return functions.NewUpdater(lambda.NewFromConfig(cfg), f.logger), nil
}

func (f *awsClientFactory) PipelineStarter(ctx context.Context, region string, scoped *creds.Credentials) (pipelineStarter, error) {
	cfg, err := f.config(ctx, region, scoped)
	if err != nil {
		return nil, err
	}
	return pipeline.NewTrigger(codepipeline.NewFromConfig(cfg), f.vars, f.logger), nil
}
