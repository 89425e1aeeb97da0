package retry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Engine runs units of work under a retry configuration.
//
// Thread Safety:
// Engine is safe for concurrent use. Each call loads the current Config once
// and uses that snapshot until it returns, so Reconfigure never affects a call
// that is already running.
type Engine struct {
	config   atomic.Pointer[Config]
	resource dbretry.Resource
	depth    dbretry.DepthSource
	logger   dbretry.Warner
	tracer   dbretry.Logger
	sleep    Sleeper
}

// Option configures an Engine.
type Option func(*Engine)

// WithResource sets the connection resource used by the reconnect action.
func WithResource(r dbretry.Resource) Option {
	return func(e *Engine) {
		e.resource = r
	}
}

// WithDepthSource sets the nesting guard. Without one, depth is always 0.
func WithDepthSource(d dbretry.DepthSource) Option {
	return func(e *Engine) {
		e.depth = d
	}
}

// WithLogger sets the sink for retry warnings. Without one, nothing is logged.
// If l also implements dbretry.Logger, per-attempt diagnostics go to its Verbose method.
func WithLogger(l dbretry.Warner) Option {
	return func(e *Engine) {
		e.logger = l
		if full, ok := l.(dbretry.Logger); ok {
			e.tracer = full
		}
	}
}

// WithSleeper replaces the function used by the sleep action.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		if s != nil {
			e.sleep = s
		}
	}
}

// NewEngine creates an engine for cfg.
// Panics if cfg is nil.
func NewEngine(cfg *Config, opts ...Option) *Engine {
	if cfg == nil {
		panic("config cannot be nil")
	}
	e := &Engine{sleep: sleepContext}
	e.config.Store(cfg)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the snapshot new calls will use.
func (e *Engine) Config() *Config {
	return e.config.Load()
}

// Reconfigure replaces the snapshot for calls that start afterwards.
// Panics if cfg is nil.
func (e *Engine) Reconfigure(cfg *Config) {
	if cfg == nil {
		panic("config cannot be nil")
	}
	e.config.Store(cfg)
}

// Do runs op, retrying it according to the engine's rules.
// On failure it returns the error op returned, unchanged, unless a recovery
// action itself failed.
func (e *Engine) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Run(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Run runs op with e and returns its result.
func Run[T any](ctx context.Context, e *Engine, op func(ctx context.Context) (T, error)) (T, error) {
	inv := invocation{
		engine: e,
		config: e.config.Load(),
	}
	if e.tracer != nil {
		inv.id = uuid.NewString()
	}

	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		retry, rerr := inv.recover(ctx, err)
		if !retry {
			var zero T
			return zero, rerr
		}
	}
}

// invocation is the per-call state. It never outlives one Run.
type invocation struct {
	engine  *Engine
	config  *Config
	attempt int
	id      string
}

// recover evaluates a failed attempt and performs the matched recovery actions.
// It reports whether op should run again; when it should not, the returned
// error is what the caller sees.
func (inv *invocation) recover(ctx context.Context, err error) (bool, error) {
	e := inv.engine

	if e.depth != nil && e.depth.Depth(ctx) > 0 {
		inv.trace("nested inside an open transaction, not retrying: %v", err)
		return false, err
	}

	delay, ok := inv.config.schedule.DelayFor(inv.attempt)
	if !ok {
		inv.trace("retry schedule exhausted after %d attempt(s): %v", inv.attempt, err)
		return false, err
	}

	rule, index, matched := inv.config.Classify(err.Error())
	if !matched {
		inv.trace("no rule matches, not retrying: %v", err)
		return false, err
	}

	inv.attempt++
	inv.trace("rule %d (%s) matched attempt %d", index, rule, inv.attempt)

	if e.logger != nil {
		e.logger.Warn("%s", retryMessage(err, rule.Actions, delay, inv.attempt))
	}

	if rule.Has(dbretry.ActionSleep) {
		if serr := e.sleep(ctx, delay); serr != nil {
			inv.trace("sleep interrupted: %v", serr)
			return false, err
		}
	}

	if rule.Has(dbretry.ActionReconnect) {
		if rerr := e.reconnect(ctx); rerr != nil {
			return false, rerr
		}
	}

	if !rule.Retries() {
		return false, err
	}
	return true, nil
}

func (e *Engine) reconnect(ctx context.Context) error {
	if e.resource == nil {
		return dbretry.ErrNoResource
	}
	if err := e.resource.Discard(ctx); err != nil {
		return fmt.Errorf("discard connection: %w", err)
	}
	if err := e.resource.Reestablish(ctx); err != nil {
		return fmt.Errorf("reestablish connection: %w", err)
	}
	return nil
}

func (inv *invocation) trace(format string, args ...interface{}) {
	if inv.engine.tracer == nil {
		return
	}
	inv.engine.tracer.Verbose("retry %s: "+format, append([]interface{}{inv.id}, args...)...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
