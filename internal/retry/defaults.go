package retry

import "github.com/vvka-141/dbretry/pkg/dbretry"

var (
	retryOnly      = []dbretry.Action{dbretry.ActionRetry}
	reconnectRetry = []dbretry.Action{dbretry.ActionSleep, dbretry.ActionReconnect, dbretry.ActionRetry}
	sleepRetry     = []dbretry.Action{dbretry.ActionSleep, dbretry.ActionRetry}
)

// MySQLRules returns the rule table for transient MySQL failures, in evaluation order.
func MySQLRules() []Rule {
	return []Rule{
		NewRule(MustRegexp(`Deadlock found when trying to get lock`), retryOnly...),
		NewRule(MustRegexp(`Lock wait timeout exceeded`), retryOnly...),
		NewRule(MustRegexp(`Lost connection to MySQL server during query`), reconnectRetry...),
		NewRule(MustRegexp(`MySQL server has gone away`), reconnectRetry...),
		NewRule(MustRegexp(`Query execution was interrupted`), retryOnly...),
		NewRule(MustRegexp(`The MySQL server is running with the --read-only option so it cannot execute this statement`), reconnectRetry...),
	}
}

// PostgreSQLRules returns the rule table for transient PostgreSQL failures.
// Patterns cover both the SQLSTATE suffix pgx adds and the plain message lib/pq emits.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func PostgreSQLRules() []Rule {
	return []Rule{
		// Class 40 - Transaction Rollback
		NewRule(MustRegexp(`deadlock detected|SQLSTATE 40P01`), retryOnly...),
		NewRule(MustRegexp(`could not serialize access|SQLSTATE 40001`), retryOnly...),

		// Class 55 - Object Not In Prerequisite State
		NewRule(MustRegexp(`could not obtain lock|lock timeout|SQLSTATE 55P03`), retryOnly...),

		// Class 57 - Operator Intervention
		NewRule(MustRegexp(`terminating connection|the database system is (starting up|shutting down)|SQLSTATE 57P0[123]`), reconnectRetry...),

		// Class 25 - read-only transaction after fail-over
		NewRule(MustRegexp(`read-only transaction|SQLSTATE 25006`), reconnectRetry...),

		// Dropped connections
		NewRule(MustRegexp(`(?i)server closed the connection|conn closed|unexpected EOF|broken pipe|connection reset`), reconnectRetry...),
	}
}

// ConnectRules classifies failures while establishing a connection.
// None of them reconnect: there is no connection to discard yet.
func ConnectRules() []Rule {
	return []Rule{
		NewRule(NewSubstringMatcher("connection refused"), sleepRetry...),
		NewRule(NewSubstringMatcher("connection reset"), sleepRetry...),
		NewRule(NewSubstringMatcher("too many connections"), sleepRetry...),
		NewRule(NewSubstringMatcher("the database system is starting up"), sleepRetry...),
		NewRule(NewSubstringMatcher("i/o timeout"), sleepRetry...),
		NewRule(NewSubstringMatcher("network is unreachable"), sleepRetry...),
		NewRule(NewSubstringMatcher("server closed the connection"), sleepRetry...),
	}
}

// RuleSet returns a named built-in rule table: "mysql", "postgres" or "none".
func RuleSet(name string) ([]Rule, bool) {
	switch name {
	case "mysql":
		return MySQLRules(), true
	case "postgres", "postgresql":
		return PostgreSQLRules(), true
	case "none":
		return nil, true
	default:
		return nil, false
	}
}
