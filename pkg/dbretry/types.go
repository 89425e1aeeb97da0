package dbretry

import (
	"fmt"
	"strings"
)

// Driver identifies how a connection is opened.
type Driver string

const (
	// DriverPgx opens a pgx connection pool (PostgreSQL).
	DriverPgx Driver = "pgx"

	// DriverPostgres opens database/sql with lib/pq (PostgreSQL).
	DriverPostgres Driver = "postgres"

	// DriverMySQL opens database/sql with go-sql-driver/mysql.
	DriverMySQL Driver = "mysql"
)

// ParseDriver validates a driver name. An empty name selects DriverPgx.
func ParseDriver(name string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(name))); d {
	case "":
		return DriverPgx, nil
	case DriverPgx, DriverPostgres, DriverMySQL:
		return d, nil
	default:
		return "", fmt.Errorf("%q: %w", name, ErrUnsupportedDriver)
	}
}

// DefaultRuleSet returns the built-in rule table name matching the driver.
func (d Driver) DefaultRuleSet() string {
	if d == DriverMySQL {
		return "mysql"
	}
	return "postgres"
}

// AuthMethod selects how the pgx driver obtains credentials.
type AuthMethod string

const (
	// AuthStandard uses the password in the DSN, PGPASSWORD or ~/.pgpass.
	AuthStandard AuthMethod = ""

	// AuthAWSIAM uses a short-lived RDS IAM token as the password.
	AuthAWSIAM AuthMethod = "aws"

	// AuthAzureEntraID uses an Entra ID access token as the password.
	AuthAzureEntraID AuthMethod = "azure"

	// AuthGoogleIAM dials through the Cloud SQL connector with IAM authentication.
	AuthGoogleIAM AuthMethod = "google"
)

// ParseAuthMethod validates an auth method name. An empty name selects AuthStandard.
func ParseAuthMethod(name string) (AuthMethod, error) {
	switch m := AuthMethod(strings.ToLower(strings.TrimSpace(name))); m {
	case AuthStandard, AuthAWSIAM, AuthAzureEntraID, AuthGoogleIAM:
		return m, nil
	case "standard", "password":
		return AuthStandard, nil
	default:
		return "", fmt.Errorf("unknown auth method %q (want aws, azure or google): %w", name, ErrInvalidConfig)
	}
}

// ConnectionConfig describes the database a command runs against.
type ConnectionConfig struct {
	Driver Driver
	DSN    string

	// Cloud authentication, pgx only.
	Auth           AuthMethod
	AWSRegion      string
	AzureTenantID  string
	AzureClientID  string
	GoogleInstance string
}

// Validate checks that the auth method is usable with the driver.
func (c *ConnectionConfig) Validate() error {
	if c.Auth != AuthStandard && c.Driver != DriverPgx {
		return fmt.Errorf("auth method %q requires the pgx driver, not %q: %w", c.Auth, c.Driver, ErrInvalidConfig)
	}
	if c.Auth == AuthGoogleIAM && c.GoogleInstance == "" {
		return fmt.Errorf("google auth requires an instance connection name (project:region:instance): %w", ErrInvalidConfig)
	}
	return nil
}
