package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/google/uuid"

	"github.com/imagerelay/imagerelay/internal/platform/awsx"
	"github.com/imagerelay/imagerelay/internal/platform/retry"
	"github.com/imagerelay/imagerelay/internal/varstore"
)

// Variable names propagated to every triggered execution.
const (
	VarImageURI     = "IMAGE_URI"
	VarFunctionName = "FUNCTION_NAME"
	VarAliasName    = "ALIAS_NAME"
	VarDeployApp    = "DEPLOY_APP"
	VarDeployGroup  = "DEPLOY_GROUP"
	VarDeployConfig = "DEPLOY_CONFIG"
)

var variableNames = []string{
	VarImageURI,
	VarFunctionName,
	VarAliasName,
	VarDeployApp,
	VarDeployGroup,
	VarDeployConfig,
}

// ErrExecutionNotFound means the pipeline service no longer knows the
// execution; the monitor records it as terminal.
var ErrExecutionNotFound = errors.New("pipeline execution not found")

// clientTokenLimit is the trigger API's correlation token length cap.
const clientTokenLimit = 128

// defaultPrefix roots every stored variable path.
const defaultPrefix = "/imagerelay/pipeline"

type Variables map[string]string

type API interface {
	StartPipelineExecution(ctx context.Context, params *codepipeline.StartPipelineExecutionInput, optFns ...func(*codepipeline.Options)) (*codepipeline.StartPipelineExecutionOutput, error)
	GetPipelineExecution(ctx context.Context, params *codepipeline.GetPipelineExecutionInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineExecutionOutput, error)
}

// Trigger starts pipeline executions and smuggles invocation variables
// to them. The start call has no native variable channel, so variables
// go into the variable store under a path scoped by pipeline name and
// execution id, with the execution id doubling as correlation token.
// Without a variable store only the image reference travels, truncated
// into the token itself.
type Trigger struct {
	client API
	vars   varstore.Store
	policy retry.Policy
	logger *slog.Logger
	prefix string
}

func NewTrigger(client API, vars varstore.Store, logger *slog.Logger) *Trigger {
	return &Trigger{
		client: client,
		vars:   vars,
		policy: retry.DefaultPolicy(awsx.IsThrottle),
		logger: logger,
		prefix: defaultPrefix,
	}
}

// Start triggers one execution and returns the real execution id.
func (t *Trigger) Start(ctx context.Context, name string, vars Variables) (string, error) {
	if name == "" {
		return "", errors.New("pipeline name is required")
	}

	provisionalID := uuid.NewString()
	token := provisionalID
	if t.vars != nil {
		t.storeVariables(ctx, name, provisionalID, vars)
	} else {
		token = truncateToken(vars[VarImageURI])
	}

	input := &codepipeline.StartPipelineExecutionInput{Name: aws.String(name)}
	if token != "" {
		input.ClientRequestToken = aws.String(token)
	}

	var out *codepipeline.StartPipelineExecutionOutput
	err := t.policy.Do(ctx, func() error {
		var callErr error
		out, callErr = t.client.StartPipelineExecution(ctx, input)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("start pipeline %s: %w", name, err)
	}

	executionID := aws.ToString(out.PipelineExecutionId)
	if t.vars != nil && executionID != "" && executionID != provisionalID {
		t.moveVariables(ctx, name, provisionalID, executionID, vars)
	}
	return executionID, nil
}

// ExecutionStatus returns the raw external status of one execution.
func (t *Trigger) ExecutionStatus(ctx context.Context, name, executionID string) (string, error) {
	out, err := t.client.GetPipelineExecution(ctx, &codepipeline.GetPipelineExecutionInput{
		PipelineName:        aws.String(name),
		PipelineExecutionId: aws.String(executionID),
	})
	if err != nil {
		var notFound *types.PipelineExecutionNotFoundException
		if errors.As(err, &notFound) {
			return "", ErrExecutionNotFound
		}
		var pipelineGone *types.PipelineNotFoundException
		if errors.As(err, &pipelineGone) {
			return "", ErrExecutionNotFound
		}
		return "", fmt.Errorf("get execution %s/%s: %w", name, executionID, err)
	}
	if out.PipelineExecution == nil {
		return "", ErrExecutionNotFound
	}
	return string(out.PipelineExecution.Status), nil
}

// Variables reads back the stored variable set for one execution.
func (t *Trigger) Variables(ctx context.Context, name, executionID string) (Variables, error) {
	if t.vars == nil {
		return nil, errors.New("variable store disabled")
	}
	return ReadVariables(ctx, t.vars, name, executionID)
}

// ReadVariables fetches the stored variable set for an execution without
// needing a pipeline client; the variables live in the variable store.
func ReadVariables(ctx context.Context, store varstore.Store, name, executionID string) (Variables, error) {
	stored, err := store.ListByPrefix(ctx, path.Join(defaultPrefix, name, executionID))
	if err != nil {
		return nil, err
	}
	out := Variables{}
	for key, value := range stored {
		out[path.Base(key)] = value
	}
	return out, nil
}

func (t *Trigger) variablePrefix(name, executionID string) string {
	return path.Join(t.prefix, name, executionID)
}

func (t *Trigger) storeVariables(ctx context.Context, name, executionID string, vars Variables) {
	prefix := t.variablePrefix(name, executionID)
	for _, key := range variableNames {
		value := vars[key]
		if value == "" {
			continue
		}
		if err := t.vars.Put(ctx, path.Join(prefix, key), value); err != nil && t.logger != nil {
			t.logger.Warn("store pipeline variable failed", "pipeline", name, "variable", key, "error", err)
		}
	}
}

// moveVariables relocates the stored set when the service assigned an
// execution id other than the provisional one.
func (t *Trigger) moveVariables(ctx context.Context, name, oldID, newID string, vars Variables) {
	oldPrefix := t.variablePrefix(name, oldID)
	newPrefix := t.variablePrefix(name, newID)
	for _, key := range variableNames {
		if vars[key] == "" {
			continue
		}
		oldPath := path.Join(oldPrefix, key)
		value, err := t.vars.Get(ctx, oldPath)
		if err != nil {
			if !errors.Is(err, varstore.ErrNotFound) && t.logger != nil {
				t.logger.Warn("read pipeline variable failed", "pipeline", name, "variable", key, "error", err)
			}
			continue
		}
		if err := t.vars.Put(ctx, path.Join(newPrefix, key), value); err != nil {
			if t.logger != nil {
				t.logger.Warn("move pipeline variable failed", "pipeline", name, "variable", key, "error", err)
			}
			continue
		}
		if err := t.vars.Delete(ctx, oldPath); err != nil && t.logger != nil {
			t.logger.Warn("delete pipeline variable failed", "pipeline", name, "variable", key, "error", err)
		}
	}
}

func truncateToken(token string) string {
	if len(token) > clientTokenLimit {
		return token[:clientTokenLimit]
	}
	return token
}
