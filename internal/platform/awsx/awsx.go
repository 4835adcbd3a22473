package awsx

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"
)

// LoadConfig resolves the ambient AWS configuration for a region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

// WithStaticCredentials returns a copy of cfg pinned to the given
// temporary credentials, as handed out by the credential issuer.
func WithStaticCredentials(cfg aws.Config, accessKeyID, secretAccessKey, sessionToken string) aws.Config {
	cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
	return cfg
}

var throttleCodes = map[string]struct{}{
	"ThrottlingException":      {},
	"TooManyRequestsException": {},
	"Throttling":               {},
	"RequestLimitExceeded":     {},
}

// IsThrottle reports whether err is a rate-limiting rejection, the only
// failure class worth retrying on upstream API calls.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	_, ok := throttleCodes[apiErr.ErrorCode()]
	return ok
}
