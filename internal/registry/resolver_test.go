package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
)

const testDigest = "sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type fakeECR struct {
	calls     int
	responses []func() (*ecr.DescribeImagesOutput, error)
	lastInput *ecr.DescribeImagesInput
}

func (f *fakeECR) DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	f.lastInput = params
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx]()
}

func throttleErr() error {
	return &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
}

func imageOutput(digests ...types.ImageDetail) *ecr.DescribeImagesOutput {
	return &ecr.DescribeImagesOutput{ImageDetails: digests}
}

func fastResolver(client DescribeImagesAPI) *Resolver {
	r := NewResolver(client, nil)
	r.policy.Initial = time.Millisecond
	return r
}

func TestResolveDigest_OK(t *testing.T) {
	fake := &fakeECR{responses: []func() (*ecr.DescribeImagesOutput, error){
		func() (*ecr.DescribeImagesOutput, error) {
			return imageOutput(types.ImageDetail{ImageDigest: aws.String(testDigest)}), nil
		},
	}}
	digest, err := fastResolver(fake).ResolveDigest(context.Background(), "svc/api", "prod", "123456789012")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if digest != testDigest {
		t.Fatalf("unexpected digest: %q", digest)
	}
	if got := aws.ToString(fake.lastInput.RegistryId); got != "123456789012" {
		t.Fatalf("unexpected registry id: %q", got)
	}
}

func TestResolveDigest_RetriesThrottling(t *testing.T) {
	fake := &fakeECR{responses: []func() (*ecr.DescribeImagesOutput, error){
		func() (*ecr.DescribeImagesOutput, error) { return nil, throttleErr() },
		func() (*ecr.DescribeImagesOutput, error) { return nil, throttleErr() },
		func() (*ecr.DescribeImagesOutput, error) {
			return imageOutput(types.ImageDetail{ImageDigest: aws.String(testDigest)}), nil
		},
	}}
	digest, err := fastResolver(fake).ResolveDigest(context.Background(), "svc/api", "prod", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if digest != testDigest {
		t.Fatalf("unexpected digest: %q", digest)
	}
	if fake.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", fake.calls)
	}
}

func TestResolveDigest_NoRetryOnOtherErrors(t *testing.T) {
	fake := &fakeECR{responses: []func() (*ecr.DescribeImagesOutput, error){
		func() (*ecr.DescribeImagesOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "RepositoryNotFoundException"}
		},
	}}
	_, err := fastResolver(fake).ResolveDigest(context.Background(), "svc/api", "prod", "")
	if !errors.Is(err, ErrDigestNotFound) {
		t.Fatalf("expected ErrDigestNotFound, got %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 call, got %d", fake.calls)
	}
}

func TestResolveDigest_ThrottleExhaustion(t *testing.T) {
	fake := &fakeECR{responses: []func() (*ecr.DescribeImagesOutput, error){
		func() (*ecr.DescribeImagesOutput, error) { return nil, throttleErr() },
	}}
	_, err := fastResolver(fake).ResolveDigest(context.Background(), "svc/api", "prod", "")
	if !errors.Is(err, ErrDigestNotFound) {
		t.Fatalf("expected ErrDigestNotFound, got %v", err)
	}
	if fake.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", fake.calls)
	}
}

func TestResolveDigest_EmptyResult(t *testing.T) {
	fake := &fakeECR{responses: []func() (*ecr.DescribeImagesOutput, error){
		func() (*ecr.DescribeImagesOutput, error) { return imageOutput(), nil },
	}}
	_, err := fastResolver(fake).ResolveDigest(context.Background(), "svc/api", "prod", "")
	if !errors.Is(err, ErrDigestNotFound) {
		t.Fatalf("expected ErrDigestNotFound, got %v", err)
	}
}

func TestResolveDigest_MostRecentPushWins(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(time.Hour)
	other := "sha256:ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	fake := &fakeECR{responses: []func() (*ecr.DescribeImagesOutput, error){
		func() (*ecr.DescribeImagesOutput, error) {
			return imageOutput(
				types.ImageDetail{ImageDigest: aws.String(other), ImagePushedAt: &old},
				types.ImageDetail{ImageDigest: aws.String(testDigest), ImagePushedAt: &recent},
				types.ImageDetail{ImageDigest: aws.String("sha256:0"), ImagePushedAt: nil},
			), nil
		},
	}}
	digest, err := fastResolver(fake).ResolveDigest(context.Background(), "svc/api", "prod", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if digest != testDigest {
		t.Fatalf("expected most recent digest, got %q", digest)
	}
}
