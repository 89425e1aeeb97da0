package db

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// rdsTokenLifetime is how long an RDS IAM token is accepted after signing.
const rdsTokenLifetime = 15 * time.Minute

// AWSIAMTokenProvider signs RDS IAM authentication tokens.
// Credentials come from the default AWS chain (environment, shared config,
// instance or task role) and are loaded once.
type AWSIAMTokenProvider struct {
	endpoint    string
	region      string
	username    string
	credentials aws.CredentialsProvider
}

// NewAWSIAMTokenProvider creates a provider for the RDS endpoint host:port.
// An empty region falls back to $AWS_REGION.
func NewAWSIAMTokenProvider(ctx context.Context, host string, port uint16, region, username string) (*AWSIAMTokenProvider, error) {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	switch {
	case host == "":
		return nil, fmt.Errorf("aws auth requires a host: %w", dbretry.ErrInvalidConfig)
	case region == "":
		return nil, fmt.Errorf("aws auth requires a region (connection.aws_region or $AWS_REGION): %w", dbretry.ErrInvalidConfig)
	case username == "":
		return nil, fmt.Errorf("aws auth requires a database user: %w", dbretry.ErrInvalidConfig)
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSIAMTokenProvider{
		endpoint:    net.JoinHostPort(host, strconv.Itoa(int(port))),
		region:      region,
		username:    username,
		credentials: cfg.Credentials,
	}, nil
}

// GetToken signs a new token. Signing is local; no request is sent to AWS.
func (p *AWSIAMTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	token, err := auth.BuildAuthToken(ctx, p.endpoint, p.region, p.username, p.credentials)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build RDS auth token: %w", err)
	}
	return token, time.Now().Add(rdsTokenLifetime), nil
}

func (p *AWSIAMTokenProvider) String() string {
	return fmt.Sprintf("AWSIAM(endpoint=%s, region=%s, user=%s)", p.endpoint, p.region, p.username)
}
