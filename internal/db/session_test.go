package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/dbretry/internal/guard"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

type fakeConnector struct {
	calls int
	err   error
}

func (f *fakeConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	f.calls++
	return nil, f.err
}

func TestOpen_ConnectFailure(t *testing.T) {
	dialErr := errors.New("dial tcp: connection refused")
	connector := &fakeConnector{err: dialErr}

	_, err := Open(context.Background(), connector)

	assert.ErrorIs(t, err, dbretry.ErrConnectionFailed)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, 1, connector.calls)
}

func TestOpen_PanicsOnNilConnector(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = Open(context.Background(), nil)
	})
}

func TestSession_ClosedSessionRejectsWork(t *testing.T) {
	s := &Session{connector: &fakeConnector{}, scopes: guard.NewTracker("test")}
	ctx := context.Background()

	// Discard on an empty session is a no-op.
	require.NoError(t, s.Discard(ctx))
	assert.Nil(t, s.Pool())
	assert.Equal(t, 0, s.Depth(ctx))

	_, err := s.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, dbretry.ErrSessionClosed)

	_, err = s.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, dbretry.ErrSessionClosed)

	var n int
	assert.ErrorIs(t, s.QueryRow(ctx, "SELECT 1").Scan(&n), dbretry.ErrSessionClosed)

	err = s.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		t.Fatal("fn must not run without a pool")
		return nil
	})
	assert.ErrorIs(t, err, dbretry.ErrSessionClosed)
}
