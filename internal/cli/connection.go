package cli

import (
	"fmt"
	"os"

	"github.com/vvka-141/dbretry/internal/config"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// connectionStringFromEnv returns the first non-empty connection string from
// DBRETRY_CONNECTION or DATABASE_URL environment variables.
func connectionStringFromEnv() string {
	if s := os.Getenv("DBRETRY_CONNECTION"); s != "" {
		return s
	}
	return os.Getenv("DATABASE_URL")
}

// authFlags holds the cloud authentication flag values.
type authFlags struct {
	method         string
	awsRegion      string
	azureTenantID  string
	azureClientID  string
	googleInstance string
}

// resolveConnection picks the driver, DSN and auth settings a command runs against.
// Priority (highest to lowest): flags > environment > dbretry.yaml.
func resolveConnection(connFlag, driverFlag string, auth authFlags, projectCfg *config.ProjectConfig) (*dbretry.ConnectionConfig, error) {
	driver, err := resolveDriver(driverFlag, projectCfg)
	if err != nil {
		return nil, err
	}

	var fileConn config.ConnectionConfig
	if projectCfg != nil {
		fileConn = projectCfg.Connection
	}
	method, err := dbretry.ParseAuthMethod(firstNonEmpty(auth.method, fileConn.AuthMethod))
	if err != nil {
		return nil, err
	}

	dsn := connFlag
	if dsn == "" {
		dsn = connectionStringFromEnv()
	}
	if dsn == "" && projectCfg != nil {
		dsn = projectCfg.Connection.DSN
	}
	if dsn == "" {
		return nil, fmt.Errorf(`no connection specified: %w

Provide one of:
  --connection "postgres://user@host/db"
  DBRETRY_CONNECTION or DATABASE_URL environment variable
  connection.dsn in %s`, dbretry.ErrInvalidConfig, config.ConfigFileName)
	}

	conn := &dbretry.ConnectionConfig{
		Driver:         driver,
		DSN:            dsn,
		Auth:           method,
		AWSRegion:      firstNonEmpty(auth.awsRegion, fileConn.AWSRegion),
		AzureTenantID:  firstNonEmpty(auth.azureTenantID, os.Getenv("AZURE_TENANT_ID"), fileConn.AzureTenantID),
		AzureClientID:  firstNonEmpty(auth.azureClientID, os.Getenv("AZURE_CLIENT_ID"), fileConn.AzureClientID),
		GoogleInstance: firstNonEmpty(auth.googleInstance, fileConn.GoogleInstance),
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	return conn, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveDriver(driverFlag string, projectCfg *config.ProjectConfig) (dbretry.Driver, error) {
	if driverFlag != "" {
		return dbretry.ParseDriver(driverFlag)
	}
	return projectCfg.Driver()
}
