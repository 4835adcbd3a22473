package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/codepipeline"

	"github.com/imagerelay/imagerelay/internal/creds"
	"github.com/imagerelay/imagerelay/internal/pipeline"
	"github.com/imagerelay/imagerelay/internal/platform/awsx"
)

// pipelineClientFactory builds status clients per region and identity.
// Executions live in the target's account, so one shared client cannot
// observe them all.
type pipelineClientFactory struct {
	logger *slog.Logger
}

func (f *pipelineClientFactory) StatusClient(ctx context.Context, region string, scoped *creds.Credentials) (statusClient, error) {
	cfg, err := awsx.LoadConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("aws config for %s: %w", region, err)
	}
	if scoped != nil {
		cfg = awsx.WithStaticCredentials(cfg, scoped.AccessKeyID, scoped.SecretAccessKey, scoped.SessionToken)
	}
	return pipeline.NewTrigger(codepipeline.NewFromConfig(cfg), nil, f.logger), nil
}
