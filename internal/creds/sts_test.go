package creds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
)

type fakeSTS struct {
	lastInput *sts.AssumeRoleInput
	err       error
}

func (f *fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	expiry := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	return &sts.AssumeRoleOutput{Credentials: &types.Credentials{
		AccessKeyId:     aws.String("AKIAEXAMPLE"),
		SecretAccessKey: aws.String("secret"),
		SessionToken:    aws.String("token"),
		Expiration:      &expiry,
	}}, nil
}

func TestAssume_OK(t *testing.T) {
	fake := &fakeSTS{}
	issuer := NewIssuer(fake, "imagerelay")
	got, err := issuer.Assume(context.Background(), "arn:aws:iam::210987654321:role/deploy")
	if err != nil {
		t.Fatalf("assume: %v", err)
	}
	if got.AccessKeyID != "AKIAEXAMPLE" || got.SecretAccessKey != "secret" || got.SessionToken != "token" {
		t.Fatalf("unexpected credentials: %+v", got)
	}
	if got.Expiration.IsZero() {
		t.Fatalf("expected expiration")
	}
	if aws.ToString(fake.lastInput.RoleSessionName) != "imagerelay" {
		t.Fatalf("unexpected session name: %q", aws.ToString(fake.lastInput.RoleSessionName))
	}
}

func TestAssume_DefaultSessionName(t *testing.T) {
	fake := &fakeSTS{}
	issuer := NewIssuer(fake, "  ")
	if _, err := issuer.Assume(context.Background(), "arn:aws:iam::1:role/x"); err != nil {
		t.Fatalf("assume: %v", err)
	}
	if aws.ToString(fake.lastInput.RoleSessionName) != "imagerelay" {
		t.Fatalf("unexpected session name: %q", aws.ToString(fake.lastInput.RoleSessionName))
	}
}

func TestAssume_RequiresArn(t *testing.T) {
	issuer := NewIssuer(&fakeSTS{}, "imagerelay")
	if _, err := issuer.Assume(context.Background(), " "); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAssume_Failure(t *testing.T) {
	issuer := NewIssuer(&fakeSTS{err: errors.New("access denied")}, "imagerelay")
	if _, err := issuer.Assume(context.Background(), "arn:aws:iam::1:role/x"); err == nil {
		t.Fatalf("expected error")
	}
}
