package dbretry

import (
	"fmt"
	"strings"
)

// Action is a recovery step performed between a failed attempt and the next one.
type Action int

const (
	// ActionSleep blocks for the scheduled delay of the current attempt.
	ActionSleep Action = iota + 1

	// ActionReconnect discards the current connection and establishes a new one.
	ActionReconnect

	// ActionRetry runs the unit of work again. A rule without it never retries.
	ActionRetry
)

// String returns the configuration name of the action.
func (a Action) String() string {
	switch a {
	case ActionSleep:
		return "sleep"
	case ActionReconnect:
		return "reconnect"
	case ActionRetry:
		return "retry"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	return a >= ActionSleep && a <= ActionRetry
}

// ParseAction converts a configuration name ("sleep", "reconnect", "retry") to an Action.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sleep":
		return ActionSleep, nil
	case "reconnect":
		return ActionReconnect, nil
	case "retry":
		return ActionRetry, nil
	default:
		return 0, fmt.Errorf("unknown recovery action %q: %w", name, ErrInvalidConfig)
	}
}
