package db

import (
	"context"
	"time"
)

// TokenProvider acquires short-lived credentials used as the PostgreSQL password.
// A token is fetched for every new physical connection, so a reconnect after
// fail-over never reuses an expired one.
type TokenProvider interface {
	// GetToken returns the token and its expiry time.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider for logs. Must not include secrets.
	String() string
}

// AzurePostgreSQLScope is the OAuth scope for Azure Database for PostgreSQL.
const AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"

// tokenExpiryWarning is how close to expiry a freshly issued token must be
// before a warning is logged.
const tokenExpiryWarning = 5 * time.Minute
