// Package sqldb adapts database/sql (through sqlx) to the retry engine.
// The "mysql" and "postgres" drivers are registered by this package.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vvka-141/dbretry/internal/guard"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

const (
	maxOpenConns    = 10
	maxIdleConns    = 2
	connMaxLifetime = time.Hour
	connMaxIdleTime = 30 * time.Minute
)

// DB is a reconnectable *sqlx.DB. It implements dbretry.Resource and
// dbretry.DepthSource.
//
// Thread-Safety: Safe for concurrent use.
type DB struct {
	driver dbretry.Driver
	dsn    string
	scopes *guard.Tracker

	mu sync.RWMutex
	db *sqlx.DB
}

// Open connects to dsn with the named database/sql driver.
func Open(ctx context.Context, driver dbretry.Driver, dsn string) (*DB, error) {
	switch driver {
	case dbretry.DriverMySQL, dbretry.DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q has no database/sql adapter", dbretry.ErrUnsupportedDriver, driver)
	}
	d := &DB{
		driver: driver,
		dsn:    dsn,
		scopes: guard.NewTracker(string(driver)),
	}
	if err := d.Reestablish(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Driver returns the database/sql driver name.
func (d *DB) Driver() dbretry.Driver {
	return d.driver
}

// Conn returns the current handle, or nil after Discard.
func (d *DB) Conn() *sqlx.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// Depth returns the number of Transaction scopes open in ctx.
func (d *DB) Depth(ctx context.Context) int {
	return d.scopes.Depth(ctx)
}

// Discard closes the current handle.
func (d *DB) Discard(ctx context.Context) error {
	d.mu.Lock()
	db := d.db
	d.db = nil
	d.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}

// Reestablish opens and pings a new handle, closing any handle still held.
func (d *DB) Reestablish(ctx context.Context) error {
	db, err := sqlx.Open(string(d.driver), d.dsn)
	if err != nil {
		return fmt.Errorf("%w: %w", dbretry.ErrInvalidConfig, err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %w", dbretry.ErrConnectionFailed, err)
	}

	d.mu.Lock()
	old := d.db
	d.db = db
	d.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close releases the handle.
func (d *DB) Close() error {
	return d.Discard(context.Background())
}

// Transaction runs fn inside a transaction and commits when fn returns nil.
// database/sql has no portable savepoints, so a nested call joins the outer
// transaction and only deepens the scope; the outermost call commits or
// rolls back.
func (d *DB) Transaction(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	if outer, ok := d.currentTx(ctx); ok {
		return fn(d.scopes.Enter(ctx, outer), outer)
	}

	db, err := d.current()
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(d.scopes.Enter(ctx, tx), tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ExecContext runs query on the transaction in ctx, or on the handle.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ex, err := d.executor(ctx)
	if err != nil {
		return nil, err
	}
	return ex.ExecContext(ctx, d.rebind(query, args), args...)
}

// SelectContext scans all rows of query into dest.
func (d *DB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	ex, err := d.executor(ctx)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, ex, dest, d.rebind(query, args), args...)
}

// GetContext scans a single row of query into dest.
func (d *DB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	ex, err := d.executor(ctx)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, ex, dest, d.rebind(query, args), args...)
}

func (d *DB) executor(ctx context.Context) (sqlx.ExtContext, error) {
	if tx, ok := d.currentTx(ctx); ok {
		return tx, nil
	}
	db, err := d.current()
	if err != nil {
		return nil, err
	}
	return db, nil
}

// rebind converts ? placeholders to the driver's bindvar style.
func (d *DB) rebind(query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	return sqlx.Rebind(sqlx.BindType(string(d.driver)), query)
}

func (d *DB) currentTx(ctx context.Context) (*sqlx.Tx, bool) {
	v, ok := d.scopes.Value(ctx)
	if !ok {
		return nil, false
	}
	tx, ok := v.(*sqlx.Tx)
	return tx, ok
}

func (d *DB) current() (*sqlx.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, dbretry.ErrSessionClosed
	}
	return d.db, nil
}

var (
	_ dbretry.Resource    = (*DB)(nil)
	_ dbretry.DepthSource = (*DB)(nil)
)
