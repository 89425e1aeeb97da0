package db

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// NewConnector builds the connector for conn's auth method.
// Cloud credentials are resolved here; tokens are fetched per connection.
func NewConnector(ctx context.Context, conn *dbretry.ConnectionConfig, logger dbretry.Logger) (*StandardConnector, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	switch conn.Auth {
	case dbretry.AuthStandard:
		return NewStandardConnector(conn.DSN, logger), nil

	case dbretry.AuthAWSIAM:
		parsed, err := parseDSN(conn.DSN)
		if err != nil {
			return nil, err
		}
		provider, err := NewAWSIAMTokenProvider(ctx, parsed.ConnConfig.Host, parsed.ConnConfig.Port, conn.AWSRegion, parsed.ConnConfig.User)
		if err != nil {
			return nil, err
		}
		return NewStandardConnector(conn.DSN, logger, WithTokenProvider(provider)), nil

	case dbretry.AuthAzureEntraID:
		provider, err := NewAzureTokenProvider(conn.AzureTenantID, conn.AzureClientID, os.Getenv("AZURE_CLIENT_SECRET"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", dbretry.ErrInvalidConfig, err)
		}
		return NewStandardConnector(conn.DSN, logger, WithTokenProvider(provider)), nil

	case dbretry.AuthGoogleIAM:
		if _, err := parseDSN(conn.DSN); err != nil {
			return nil, err
		}
		return NewStandardConnector(conn.DSN, logger, WithCloudSQLDialer(NewCloudSQLDialer(conn.GoogleInstance))), nil

	default:
		return nil, fmt.Errorf("auth method %q: %w", conn.Auth, dbretry.ErrInvalidConfig)
	}
}

func parseDSN(dsn string) (*pgxpool.Config, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %v: %w", err, dbretry.ErrInvalidConfig)
	}
	return cfg, nil
}
