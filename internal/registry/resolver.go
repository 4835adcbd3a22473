package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/imagerelay/imagerelay/internal/platform/awsx"
	"github.com/imagerelay/imagerelay/internal/platform/retry"
)

// ErrDigestNotFound means the repository/tag pair could not be resolved
// to a digest. Terminal for the whole invocation.
var ErrDigestNotFound = errors.New("image digest not found")

type DescribeImagesAPI interface {
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

// Resolver turns (repository, tag, registry) into an immutable content
// digest, retrying only on registry throttling.
type Resolver struct {
	client DescribeImagesAPI
	policy retry.Policy
	logger *slog.Logger
}

func NewResolver(client DescribeImagesAPI, logger *slog.Logger) *Resolver {
	return &Resolver{
		client: client,
		policy: retry.DefaultPolicy(awsx.IsThrottle),
		logger: logger,
	}
}

func (r *Resolver) ResolveDigest(ctx context.Context, repository, tag, registryID string) (string, error) {
	input := &ecr.DescribeImagesInput{
		RepositoryName: aws.String(repository),
		ImageIds:       []types.ImageIdentifier{{ImageTag: aws.String(tag)}},
	}
	if registryID != "" {
		input.RegistryId = aws.String(registryID)
	}

	var out *ecr.DescribeImagesOutput
	err := r.policy.Do(ctx, func() error {
		var callErr error
		out, callErr = r.client.DescribeImages(ctx, input)
		return callErr
	})
	if err != nil {
		if r.logger != nil {
			r.logger.Error("describe images failed", "repository", repository, "tag", tag, "error", err)
		}
		return "", fmt.Errorf("resolve %s:%s: %w", repository, tag, ErrDigestNotFound)
	}

	details := out.ImageDetails
	if len(details) == 0 {
		return "", fmt.Errorf("resolve %s:%s: %w", repository, tag, ErrDigestNotFound)
	}
	if len(details) > 1 {
		// A tag should name one image; if the registry reports several,
		// the most recently pushed wins.
		sort.SliceStable(details, func(i, j int) bool {
			ti, tj := details[i].ImagePushedAt, details[j].ImagePushedAt
			if ti == nil {
				return false
			}
			if tj == nil {
				return true
			}
			return ti.After(*tj)
		})
	}

	digest := aws.ToString(details[0].ImageDigest)
	if digest == "" {
		return "", fmt.Errorf("resolve %s:%s: %w", repository, tag, ErrDigestNotFound)
	}
	return digest, nil
}
