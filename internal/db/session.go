package db

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/dbretry/internal/guard"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// Session is a reconnectable pgx pool with per-caller transaction tracking.
// It is the Resource and DepthSource handed to a retry engine.
//
// Thread-Safety: Safe for concurrent use. Transaction scopes live in the
// context each caller passes, not in the Session.
type Session struct {
	connector dbretry.Connector
	scopes    *guard.Tracker

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// Open connects through connector and returns a ready Session.
func Open(ctx context.Context, connector dbretry.Connector) (*Session, error) {
	if connector == nil {
		panic("connector cannot be nil")
	}
	s := &Session{
		connector: connector,
		scopes:    guard.NewTracker("pgx"),
	}
	if err := s.Reestablish(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Pool returns the current pool, or nil after Discard.
func (s *Session) Pool() *pgxpool.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool
}

// Depth returns the number of Transaction scopes open in ctx.
func (s *Session) Depth(ctx context.Context) int {
	return s.scopes.Depth(ctx)
}

// Discard closes the current pool. Calls already holding a connection finish
// with an error; new calls fail with ErrSessionClosed until Reestablish.
func (s *Session) Discard(ctx context.Context) error {
	s.mu.Lock()
	pool := s.pool
	s.pool = nil
	s.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
	return nil
}

// Reestablish opens a new pool, closing any pool still held.
func (s *Session) Reestablish(ctx context.Context) error {
	pool, err := s.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", dbretry.ErrConnectionFailed, err)
	}

	s.mu.Lock()
	old := s.pool
	s.pool = pool
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Close releases the pool, and the connector if it holds resources of its own.
func (s *Session) Close() {
	_ = s.Discard(context.Background())
	if closer, ok := s.connector.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Transaction runs fn inside a transaction and commits when fn returns nil.
// Called with a ctx that already carries a transaction from this Session, it
// opens a savepoint instead. The ctx passed to fn carries the new scope.
func (s *Session) Transaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if outer, ok := s.currentTx(ctx); ok {
		tx, err = outer.Begin(ctx)
	} else {
		pool, perr := s.currentPool()
		if perr != nil {
			return perr
		}
		tx, err = pool.Begin(ctx)
	}
	if err != nil {
		return err
	}

	if err := fn(s.scopes.Enter(ctx, tx), tx); err != nil {
		// ctx may already be done; a rollback on it would close the connection.
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	return tx.Commit(ctx)
}

// Exec runs sql on the innermost transaction in ctx, or on the pool.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx, ok := s.currentTx(ctx); ok {
		return tx.Exec(ctx, sql, args...)
	}
	pool, err := s.currentPool()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return pool.Exec(ctx, sql, args...)
}

// Query runs sql on the innermost transaction in ctx, or on the pool.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx, ok := s.currentTx(ctx); ok {
		return tx.Query(ctx, sql, args...)
	}
	pool, err := s.currentPool()
	if err != nil {
		return nil, err
	}
	return pool.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query on the innermost transaction in ctx, or on the pool.
// Errors are deferred until Scan.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx, ok := s.currentTx(ctx); ok {
		return tx.QueryRow(ctx, sql, args...)
	}
	pool, err := s.currentPool()
	if err != nil {
		return errRow{err: err}
	}
	return pool.QueryRow(ctx, sql, args...)
}

func (s *Session) currentTx(ctx context.Context) (pgx.Tx, bool) {
	v, ok := s.scopes.Value(ctx)
	if !ok {
		return nil, false
	}
	tx, ok := v.(pgx.Tx)
	return tx, ok
}

func (s *Session) currentPool() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, dbretry.ErrSessionClosed
	}
	return s.pool, nil
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}

var (
	_ dbretry.Resource    = (*Session)(nil)
	_ dbretry.DepthSource = (*Session)(nil)
)
