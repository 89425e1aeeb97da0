package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/dbretry/internal/retry"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// Connection pool configuration constants
const (
	// DefaultMaxConns limits concurrent connections to prevent resource exhaustion.
	DefaultMaxConns = 5

	// DefaultMinConns maintains at least one connection in the pool.
	DefaultMinConns = 1

	// DefaultMaxConnIdleTime keeps idle connections around between retries.
	DefaultMaxConnIdleTime = 30 * time.Minute
)

func configurePool(poolConfig *pgxpool.Config) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
}

// StandardConnector opens pgx pools from a DSN, retrying transient connect failures.
type StandardConnector struct {
	dsn     string
	engine  *retry.Engine
	logger  dbretry.Logger
	tokens  TokenProvider
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	closers []io.Closer
}

// ConnectorOption configures a StandardConnector.
type ConnectorOption func(*StandardConnector)

// WithTokenProvider sets the password of every new connection to a fresh token from p.
func WithTokenProvider(p TokenProvider) ConnectorOption {
	return func(c *StandardConnector) {
		c.tokens = p
	}
}

// WithCloudSQLDialer routes every connection through d. The connector closes d on Close.
func WithCloudSQLDialer(d *CloudSQLDialer) ConnectorOption {
	return func(c *StandardConnector) {
		c.dial = d.Dial
		c.closers = append(c.closers, d)
	}
}

// NewStandardConnector creates a StandardConnector for dsn.
// Connect failures are retried with retry.ConnectRules on an exponential schedule of
// DefaultConnectMaxAttempts retries between DefaultConnectInitialDelay and DefaultConnectMaxDelay.
// logger may be nil.
func NewStandardConnector(dsn string, logger dbretry.Logger, opts ...ConnectorOption) *StandardConnector {
	schedule := retry.NewExponentialSchedule(dbretry.DefaultConnectMaxAttempts,
		retry.WithInitialDelay(dbretry.DefaultConnectInitialDelay),
		retry.WithMaxDelay(dbretry.DefaultConnectMaxDelay),
	)

	var engineOpts []retry.Option
	if logger != nil {
		engineOpts = append(engineOpts, retry.WithLogger(logger))
	}

	c := &StandardConnector{
		dsn:    dsn,
		engine: retry.NewEngine(retry.MustConfig(retry.ConnectRules(), schedule), engineOpts...),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a connection pool and verifies it with a ping.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := parseDSN(c.dsn)
	if err != nil {
		return nil, err
	}
	configurePool(poolConfig)
	if c.dial != nil {
		poolConfig.ConnConfig.DialFunc = c.dial
	}
	if c.tokens != nil {
		poolConfig.BeforeConnect = c.injectToken
	}

	host := poolConfig.ConnConfig.Host
	port := int(poolConfig.ConnConfig.Port)
	database := poolConfig.ConnConfig.Database

	return retry.Run(ctx, c.engine, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, wrapConnectionError(err, host, port, database)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, wrapConnectionError(err, host, port, database)
		}

		return pool, nil
	})
}

func (c *StandardConnector) injectToken(ctx context.Context, cc *pgx.ConnConfig) error {
	token, expiresOn, err := c.tokens.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire %s token: %w", c.tokens, err)
	}
	if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning && c.logger != nil {
		c.logger.Warn("%s token expires in %v", c.tokens, remaining.Round(time.Second))
	}
	cc.Password = token
	return nil
}

// Close releases resources shared by every pool this connector opened,
// such as a Cloud SQL dialer. Call it after the last pool is closed.
func (c *StandardConnector) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// wrapConnectionError wraps raw pgx connection errors with actionable guidance.
// The original message stays in the text so connect rules still classify it.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - Database server is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port
  - Firewall blocking the connection

Original error: %w`, addr, host, port, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable

Original error: %w`, host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`password authentication failed for database "%s"

Possible causes:
  - Wrong password (check $PGPASSWORD or ~/.pgpass)
  - Wrong username

Original error: %w`, database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets

Original error: %w`, addr, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`too many connections to database "%s"

Possible causes:
  - max_connections limit reached on the server
  - Connections leaked by other clients

Original error: %w`, database, err)

	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}
