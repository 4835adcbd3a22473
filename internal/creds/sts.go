package creds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Credentials are scoped temporary credentials for one target account.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// Issuer exchanges an assume-role ARN for scoped credentials. Bindings
// without an ARN use the ambient identity and never reach the issuer.
type Issuer struct {
	client      AssumeRoleAPI
	sessionName string
}

func NewIssuer(client AssumeRoleAPI, sessionName string) *Issuer {
	if strings.TrimSpace(sessionName) == "" {
		sessionName = "imagerelay"
	}
	return &Issuer{client: client, sessionName: sessionName}
}

func (i *Issuer) Assume(ctx context.Context, roleArn string) (Credentials, error) {
	if strings.TrimSpace(roleArn) == "" {
		return Credentials{}, fmt.Errorf("role arn is required")
	}
	out, err := i.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String(i.sessionName),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("assume role %s: %w", roleArn, err)
	}
	if out.Credentials == nil {
		return Credentials{}, fmt.Errorf("assume role %s: empty credentials", roleArn)
	}
	c := Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
	}
	if out.Credentials.Expiration != nil {
		c.Expiration = *out.Credentials.Expiration
	}
	return c, nil
}
