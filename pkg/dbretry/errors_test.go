package dbretry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"invalid config", fmt.Errorf("load: %w", ErrInvalidConfig), ExitConfigError},
		{"unsupported driver", fmt.Errorf("open: %w", ErrUnsupportedDriver), ExitConfigError},
		{"connection failed", fmt.Errorf("dial: %w", ErrConnectionFailed), ExitConnectionError},
		{"no match", ErrNoMatch, ExitNoMatch},
		{"execution failed", fmt.Errorf("exec: %w", ErrExecutionFailed), ExitExecutionFailed},
		{"connection refused text", errors.New("dial tcp: connection refused"), ExitConnectionError},
		{"missing argument", errors.New("missing required argument: <sql>"), ExitUsageError},
		{"unknown flag", errors.New("unknown flag: --nope"), ExitUsageError},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeForError(tt.err))
		})
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range []Action{ActionSleep, ActionReconnect, ActionRetry} {
		parsed, err := ParseAction(a.String())
		assert.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	parsed, err := ParseAction("  Retry ")
	assert.NoError(t, err)
	assert.Equal(t, ActionRetry, parsed)

	_, err = ParseAction("explode")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAction_Valid(t *testing.T) {
	assert.True(t, ActionSleep.Valid())
	assert.True(t, ActionRetry.Valid())
	assert.False(t, Action(0).Valid())
	assert.False(t, Action(42).Valid())
	assert.Equal(t, "action(42)", Action(42).String())
}

func TestDefaultSchedule_ReturnsFreshSlice(t *testing.T) {
	s := DefaultSchedule()
	s[0] = 0
	assert.NotZero(t, DefaultSchedule()[0])
	assert.Len(t, DefaultSchedule(), 3)
}
