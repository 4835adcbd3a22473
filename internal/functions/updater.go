package functions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/imagerelay/imagerelay/internal/domain"
	"github.com/imagerelay/imagerelay/internal/platform/awsx"
	"github.com/imagerelay/imagerelay/internal/platform/retry"
)

// Strategy selects what happens after a successful code update.
type Strategy string

const (
	StrategyPublishAndAlias Strategy = "publish-and-alias"
	StrategyPublishOnly     Strategy = "publish-only"
	StrategyCodeOnly        Strategy = "code-only"
)

// ParseStrategy maps the configured value onto a strategy; anything
// unrecognized degrades to code-only.
func ParseStrategy(raw string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case StrategyPublishAndAlias:
		return StrategyPublishAndAlias
	case StrategyPublishOnly:
		return StrategyPublishOnly
	}
	return StrategyCodeOnly
}

type LambdaAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	PublishVersion(ctx context.Context, params *lambda.PublishVersionInput, optFns ...func(*lambda.Options)) (*lambda.PublishVersionOutput, error)
	UpdateAlias(ctx context.Context, params *lambda.UpdateAliasInput, optFns ...func(*lambda.Options)) (*lambda.UpdateAliasOutput, error)
	CreateAlias(ctx context.Context, params *lambda.CreateAliasInput, optFns ...func(*lambda.Options)) (*lambda.CreateAliasOutput, error)
}

// Outcome is the successful end state of one apply: either a real update
// or a noop because the function already runs the digest.
type Outcome struct {
	Status         domain.Status
	PreviousDigest string
	NewDigest      string
	Version        string
	Alias          string
}

// Updater rolls a digest-pinned image onto one function: update code,
// wait for the runtime to finish the update, then publish/retarget per
// the strategy.
type Updater struct {
	client       LambdaAPI
	policy       retry.Policy
	waitInterval time.Duration
	waitTimeout  time.Duration
	logger       *slog.Logger
}

func NewUpdater(client LambdaAPI, logger *slog.Logger) *Updater {
	return &Updater{
		client:       client,
		policy:       retry.DefaultPolicy(awsx.IsThrottle),
		waitInterval: 2 * time.Second,
		waitTimeout:  300 * time.Second,
		logger:       logger,
	}
}

// CurrentDigest reads the digest the function is deployed at. An empty
// string means none could be determined (not an image function, or the
// reference carries no digest); the caller treats that as "different".
func (u *Updater) CurrentDigest(ctx context.Context, functionName string) (string, error) {
	cfg, err := u.client.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(functionName),
	})
	if err != nil {
		return "", fmt.Errorf("get function configuration: %w", err)
	}
	if cfg.PackageType != types.PackageTypeImage {
		return "", nil
	}

	fn, err := u.client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(functionName),
	})
	if err != nil {
		return "", fmt.Errorf("get function: %w", err)
	}
	if fn.Code == nil {
		return "", nil
	}
	digest, ok := domain.DigestFromImageRef(aws.ToString(fn.Code.ImageUri))
	if !ok {
		return "", nil
	}
	return digest, nil
}

func (u *Updater) Apply(ctx context.Context, functionName, imageURI, aliasName string, strategy Strategy) (Outcome, error) {
	newDigest, ok := domain.DigestFromImageRef(imageURI)
	if !ok {
		return Outcome{}, fmt.Errorf("image reference %q carries no digest", imageURI)
	}

	current, err := u.CurrentDigest(ctx, functionName)
	if err != nil {
		// Unreadable current state is treated as "different"; the update
		// call itself surfaces hard failures like a missing function.
		if u.logger != nil {
			u.logger.Warn("current digest unavailable", "function", functionName, "error", err)
		}
		current = ""
	}
	if current != "" && current == newDigest {
		return Outcome{Status: domain.StatusNoop, PreviousDigest: current, NewDigest: newDigest}, nil
	}

	err = u.policy.Do(ctx, func() error {
		_, callErr := u.client.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
			FunctionName: aws.String(functionName),
			ImageUri:     aws.String(imageURI),
			Publish:      false,
		})
		return callErr
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("update function code: %w", err)
	}

	if err := u.waitForUpdate(ctx, functionName); err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Status: domain.StatusUpdated, PreviousDigest: current, NewDigest: newDigest}

	if strategy == StrategyPublishAndAlias || strategy == StrategyPublishOnly {
		published, err := u.client.PublishVersion(ctx, &lambda.PublishVersionInput{
			FunctionName: aws.String(functionName),
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("publish version: %w", err)
		}
		outcome.Version = aws.ToString(published.Version)
	}

	if strategy == StrategyPublishAndAlias && aliasName != "" {
		if err := u.retargetAlias(ctx, functionName, aliasName, outcome.Version); err != nil {
			return Outcome{}, err
		}
		outcome.Alias = aliasName
	}

	return outcome, nil
}

// waitForUpdate polls the runtime's update status at a fixed interval
// until it is terminal, bounded by the overall wait timeout.
func (u *Updater) waitForUpdate(ctx context.Context, functionName string) error {
	deadline := time.Now().Add(u.waitTimeout)
	ticker := time.NewTicker(u.waitInterval)
	defer ticker.Stop()

	for {
		cfg, err := u.client.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
			FunctionName: aws.String(functionName),
		})
		if err != nil {
			return fmt.Errorf("poll update status: %w", err)
		}
		switch cfg.LastUpdateStatus {
		case types.LastUpdateStatusSuccessful:
			return nil
		case types.LastUpdateStatusFailed:
			return fmt.Errorf("update failed: %s", aws.ToString(cfg.LastUpdateStatusReason))
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("update timed out after %s", u.waitTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// retargetAlias points the alias at the version, creating it on first use.
func (u *Updater) retargetAlias(ctx context.Context, functionName, aliasName, version string) error {
	_, err := u.client.UpdateAlias(ctx, &lambda.UpdateAliasInput{
		FunctionName:    aws.String(functionName),
		Name:            aws.String(aliasName),
		FunctionVersion: aws.String(version),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("update alias %s: %w", aliasName, err)
	}

	_, err = u.client.CreateAlias(ctx, &lambda.CreateAliasInput{
		FunctionName:    aws.String(functionName),
		Name:            aws.String(aliasName),
		FunctionVersion: aws.String(version),
	})
	if err != nil {
		return fmt.Errorf("create alias %s: %w", aliasName, err)
	}
	return nil
}
