// Package retry runs a unit of work with a rule-driven retry policy for
// transient database failures.
//
// A failure's message is matched against an ordered rule table. The first
// matching rule decides the recovery actions (sleep, reconnect, retry) and the
// schedule decides how many retries are allowed and how long each sleep is.
// Failures that match no rule, failures raised inside an already-open outer
// transaction and failures past the end of the schedule are returned to the
// caller unchanged.
//
// # Example Usage
//
//	cfg := retry.DefaultConfig()
//	engine := retry.NewEngine(cfg,
//	    retry.WithResource(session),
//	    retry.WithDepthSource(session),
//	    retry.WithLogger(logger),
//	)
//
//	rows, err := retry.Run(ctx, engine, func(ctx context.Context) (int64, error) {
//	    tag, err := session.Exec(ctx, "UPDATE accounts SET balance = balance - 1 WHERE id = $1", id)
//	    return tag.RowsAffected(), err
//	})
//
// # Rule Order
//
// Rule order is authoritative. When two patterns overlap, only the earlier rule
// is ever applied to messages they both match. Rules without the retry action
// perform their other actions and then fail the call; they can never cause a
// retry.
//
// # Thread Safety
//
// Config values are immutable snapshots. An Engine is safe for concurrent use;
// Reconfigure swaps the snapshot atomically and in-flight calls keep the one
// they started with. Matchers must not be mutated once part of a Config.
package retry
