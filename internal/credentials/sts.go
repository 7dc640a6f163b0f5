package credentials

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

// STS enforces these bounds for GetSessionToken.
const (
	minDurationSeconds = 900
	maxDurationSeconds = 129600
)

// Credentials is a set of time-boxed AWS access keys.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// Identity describes the AWS principal the tool is running as.
type Identity struct {
	Account string
	ARN     string
}

// Name returns the last path segment of the identity ARN.
func (id Identity) Name() string {
	parts := strings.Split(id.ARN, "/")
	return parts[len(parts)-1]
}

// Issuer requests temporary credentials from STS.
type Issuer struct {
	client *sts.Client
}

// NewIssuer builds an Issuer for the given region using the default AWS
// credential chain.
func NewIssuer(ctx context.Context, region string) (*Issuer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Issuer{client: sts.NewFromConfig(cfg)}, nil
}

// Issue requests session credentials valid for durationSeconds. There is no
// retry; a failed call is propagated to the caller.
func (i *Issuer) Issue(ctx context.Context, durationSeconds int) (Credentials, error) {
	if err := validateDuration(durationSeconds); err != nil {
		return Credentials{}, err
	}

	logger.Log.Info().
		Int("duration_minutes", durationSeconds/60).
		Msg("Getting temporary AWS credentials")

	out, err := i.client.GetSessionToken(ctx, &sts.GetSessionTokenInput{
		DurationSeconds: aws.Int32(int32(durationSeconds)),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to get temporary credentials: %w", err)
	}

	creds := Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Expiration:      aws.ToTime(out.Credentials.Expiration),
	}

	logger.Log.Info().
		Time("expires_at", creds.Expiration).
		Msg("Temporary credentials obtained")

	return creds, nil
}

// CallerIdentity returns the account and ARN of the current AWS principal.
// The orchestrator uses it as a cheap prerequisites check before touching S3
// or AgentCore.
func (i *Issuer) CallerIdentity(ctx context.Context) (Identity, error) {
	out, err := i.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to check AWS identity: %w", err)
	}

	return Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
	}, nil
}

func validateDuration(seconds int) error {
	if seconds < minDurationSeconds || seconds > maxDurationSeconds {
		return fmt.Errorf("credential duration %ds out of range [%d, %d]",
			seconds, minDurationSeconds, maxDurationSeconds)
	}
	return nil
}
