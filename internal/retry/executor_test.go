package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// recorder captures every side effect the engine performs.
type recorder struct {
	mu         sync.Mutex
	sleeps     []time.Duration
	discards   int
	reconnects int
	warnings   []string
	events     []string

	discardErr     error
	reestablishErr error
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	r.events = append(r.events, "sleep")
	return nil
}

func (r *recorder) Discard(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discards++
	r.events = append(r.events, "discard")
	return r.discardErr
}

func (r *recorder) Reestablish(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnects++
	r.events = append(r.events, "reestablish")
	return r.reestablishErr
}

func (r *recorder) Warn(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// testRules mirrors the rule table used by the original test suite: the most
// specific patterns first, the catch-all "retry" last.
func testRules() []Rule {
	return []Rule{
		NewRule(MustRegexp(`sleep then reconnect then retry`), dbretry.ActionSleep, dbretry.ActionReconnect, dbretry.ActionRetry),
		NewRule(MustRegexp(`sleep then retry`), dbretry.ActionSleep, dbretry.ActionRetry),
		NewRule(MustRegexp(`reconnect then retry`), dbretry.ActionReconnect, dbretry.ActionRetry),
		NewRule(MustRegexp(`sleep only`), dbretry.ActionSleep),
		NewRule(MustRegexp(`retry`), dbretry.ActionRetry),
	}
}

func newTestEngine(t *testing.T, schedule Schedule, rec *recorder, opts ...Option) *Engine {
	t.Helper()
	cfg, err := NewConfig(testRules(), schedule)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	base := []Option{
		WithSleeper(rec.sleep),
		WithResource(rec),
		WithLogger(rec),
	}
	return NewEngine(cfg, append(base, opts...)...)
}

// failing returns an operation that fails with each message in turn, then succeeds.
func failing(invocations *int, messages ...string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		*invocations++
		if len(messages) > 0 {
			msg := messages[0]
			messages = messages[1:]
			return errors.New(msg)
		}
		return nil
	}
}

func TestEngine_Do_SuccessOnFirstAttempt(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{time.Second}, rec)

	invocations := 0
	if err := engine.Do(context.Background(), failing(&invocations)); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", invocations)
	}
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings on immediate success, got %v", rec.warnings)
	}
}

func TestRun_ReturnsResult(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{0}, rec)

	calls := 0
	got, err := Run(context.Background(), engine, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("retry please")
		}
		return "success", nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if got != "success" {
		t.Errorf("Expected result %q, got %q", "success", got)
	}
}

func TestRun_ReturnsZeroValueOnFailure(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{}, rec)

	got, err := Run(context.Background(), engine, func(ctx context.Context) (int, error) {
		return 42, errors.New("retry")
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if got != 0 {
		t.Errorf("Expected zero value on failure, got %d", got)
	}
}

// Scenario: errors no more numerous than the schedule are survived.
func TestEngine_Do_FewerErrorsThanRetries(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{0, 0}, rec)

	invocations := 0
	err := engine.Do(context.Background(), failing(&invocations, "transient retry A", "transient retry B"))
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if invocations != 3 {
		t.Errorf("Expected 3 invocations, got %d", invocations)
	}
	if rec.reconnects != 0 || rec.discards != 0 {
		t.Errorf("Expected no reconnects, got discard=%d reestablish=%d", rec.discards, rec.reconnects)
	}
	for _, d := range rec.sleeps {
		if d != 0 {
			t.Errorf("Expected only zero sleeps, got %v", rec.sleeps)
		}
	}
	if len(rec.warnings) != 2 {
		t.Errorf("Expected 2 warnings, got %d", len(rec.warnings))
	}
}

func TestEngine_Do_MoreErrorsThanRetries(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{0, 0}, rec)

	invocations := 0
	err := engine.Do(context.Background(), failing(&invocations, "sleep then retry", "retry", "retry"))
	if err == nil {
		t.Fatal("Expected failure after schedule is exhausted")
	}
	if err.Error() != "retry" {
		t.Errorf("Expected the third error to surface, got %v", err)
	}
	if invocations != 3 {
		t.Errorf("Expected 3 invocations, got %d", invocations)
	}
}

func TestEngine_Do_InvokesScheduleLengthPlusOne(t *testing.T) {
	for _, length := range []int{0, 1, 2, 4, 7} {
		t.Run(fmt.Sprintf("length_%d", length), func(t *testing.T) {
			rec := &recorder{}
			engine := newTestEngine(t, make(Schedule, length), rec)

			invocations := 0
			err := engine.Do(context.Background(), func(ctx context.Context) error {
				invocations++
				return errors.New("retry")
			})
			if err == nil {
				t.Fatal("Expected failure")
			}
			if invocations != length+1 {
				t.Errorf("Expected %d invocations, got %d", length+1, invocations)
			}
			if len(rec.warnings) != length {
				t.Errorf("Expected %d warnings, got %d", length, len(rec.warnings))
			}
		})
	}
}

// Scenario: sleeps follow the schedule and the failure after it is surfaced.
func TestEngine_Do_SleepsForScheduledDelays(t *testing.T) {
	rec := &recorder{}
	schedule := Schedule{2 * time.Second, 4 * time.Second, 8 * time.Second}
	engine := newTestEngine(t, schedule, rec)

	invocations := 0
	var last error
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		last = fmt.Errorf("sleep then retry #%d", invocations)
		return last
	})

	if err != last {
		t.Errorf("Expected the 4th invocation's error, got %v", err)
	}
	if invocations != 4 {
		t.Errorf("Expected 4 invocations, got %d", invocations)
	}
	if len(rec.sleeps) != len(schedule) {
		t.Fatalf("Expected %d sleeps, got %v", len(schedule), rec.sleeps)
	}
	for i, d := range schedule {
		if rec.sleeps[i] != d {
			t.Errorf("Sleep %d: expected %v, got %v", i, d, rec.sleeps[i])
		}
	}
}

// Scenario: a failure inside an open outer transaction is never retried.
func TestEngine_Do_NestedTransactionIsNotRetried(t *testing.T) {
	rec := &recorder{}
	depth := dbretry.DepthFunc(func(ctx context.Context) int { return 1 })
	engine := newTestEngine(t, Schedule{time.Second, time.Second}, rec, WithDepthSource(depth))

	original := errors.New("sleep then reconnect then retry")
	invocations := 0
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		return original
	})

	if err != original {
		t.Errorf("Expected original error, got %v", err)
	}
	if invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", invocations)
	}
	if len(rec.events) != 0 {
		t.Errorf("Expected no recovery actions, got %v", rec.events)
	}
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", rec.warnings)
	}
}

func TestEngine_Do_DepthIsReadAtFailureTime(t *testing.T) {
	rec := &recorder{}
	open := 0
	depth := dbretry.DepthFunc(func(ctx context.Context) int { return open })
	engine := newTestEngine(t, Schedule{0}, rec, WithDepthSource(depth))

	invocations := 0
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		open++
		defer func() { open-- }()
		if invocations == 1 {
			return errors.New("retry")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected the unit's own transaction to unwind before the check, got %v", err)
	}
	if invocations != 2 {
		t.Errorf("Expected 2 invocations, got %d", invocations)
	}
}

func TestEngine_Do_UnclassifiedErrorIsNotRetried(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{time.Second}, rec)

	original := errors.New("syntax error at or near SELEKT")
	invocations := 0
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		return original
	})

	if err != original {
		t.Errorf("Expected original error, got %v", err)
	}
	if invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", invocations)
	}
	if len(rec.warnings) != 0 || len(rec.events) != 0 {
		t.Errorf("Expected no warnings or actions, got %v %v", rec.warnings, rec.events)
	}
}

type customErr struct{ code int }

func (e *customErr) Error() string { return fmt.Sprintf("retry code %d", e.code) }

func TestEngine_Do_PreservesErrorType(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{0}, rec)

	err := engine.Do(context.Background(), func(ctx context.Context) error {
		return &customErr{code: 7}
	})

	var ce *customErr
	if !errors.As(err, &ce) || ce.code != 7 {
		t.Errorf("Expected *customErr with code 7, got %T %v", err, err)
	}
}

func TestEngine_Do_FirstMatchingRuleWins(t *testing.T) {
	rec := &recorder{}
	// "sleep then reconnect then retry" also contains "reconnect then retry" and "retry".
	engine := newTestEngine(t, Schedule{3 * time.Second}, rec)

	invocations := 0
	err := engine.Do(context.Background(), failing(&invocations, "sleep then reconnect then retry"))
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	want := []string{"sleep", "discard", "reestablish"}
	if strings.Join(rec.events, ",") != strings.Join(want, ",") {
		t.Errorf("Expected events %v, got %v", want, rec.events)
	}
}

// Scenario: reconnect then retry, exhausted after one retry.
func TestEngine_Do_ReconnectsOncePerRetry(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{2 * time.Second}, rec)

	invocations := 0
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		return errors.New("reconnect then retry")
	})

	if err == nil {
		t.Fatal("Expected failure")
	}
	if invocations != 2 {
		t.Errorf("Expected 2 invocations, got %d", invocations)
	}
	if rec.discards != 1 || rec.reconnects != 1 {
		t.Errorf("Expected one discard and one reestablish, got %d and %d", rec.discards, rec.reconnects)
	}
	if len(rec.sleeps) != 0 {
		t.Errorf("Expected no sleep, got %v", rec.sleeps)
	}
}

func TestEngine_Do_SleepRunsBeforeReconnect(t *testing.T) {
	rec := &recorder{}
	rules := []Rule{
		NewRule(MustRegexp(`fail-over`), dbretry.ActionReconnect, dbretry.ActionSleep, dbretry.ActionRetry),
	}
	cfg := MustConfig(rules, Schedule{time.Second})
	engine := NewEngine(cfg, WithSleeper(rec.sleep), WithResource(rec), WithLogger(rec))

	invocations := 0
	_ = engine.Do(context.Background(), failing(&invocations, "fail-over"))

	want := "sleep,discard,reestablish"
	if got := strings.Join(rec.events, ","); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	// The message keeps the configured order.
	if len(rec.warnings) != 1 || !strings.Contains(rec.warnings[0], "Reconnecting, sleeping for 1s, retrying") {
		t.Errorf("Unexpected warning: %v", rec.warnings)
	}
}

func TestEngine_Do_RuleWithoutRetryStillFails(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{5 * time.Second, 5 * time.Second}, rec)

	original := errors.New("sleep only")
	invocations := 0
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		return original
	})

	if err != original {
		t.Errorf("Expected original error, got %v", err)
	}
	if invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", invocations)
	}
	if len(rec.sleeps) != 1 || rec.sleeps[0] != 5*time.Second {
		t.Errorf("Expected the listed sleep to run, got %v", rec.sleeps)
	}
	if len(rec.warnings) != 1 {
		t.Errorf("Expected 1 warning, got %d", len(rec.warnings))
	}
}

func TestEngine_Do_DiscardFailureIsFatal(t *testing.T) {
	discardErr := errors.New("close failed")
	rec := &recorder{discardErr: discardErr}
	engine := newTestEngine(t, Schedule{0, 0}, rec)

	invocations := 0
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		return errors.New("reconnect then retry")
	})

	if !errors.Is(err, discardErr) {
		t.Errorf("Expected discard error, got %v", err)
	}
	if invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", invocations)
	}
	if rec.reconnects != 0 {
		t.Errorf("Expected reestablish to be skipped, got %d", rec.reconnects)
	}
}

func TestEngine_Do_ReestablishFailureIsFatal(t *testing.T) {
	reErr := errors.New("dial failed")
	rec := &recorder{reestablishErr: reErr}
	engine := newTestEngine(t, Schedule{0, 0}, rec)

	invocations := 0
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		return errors.New("reconnect then retry")
	})

	if !errors.Is(err, reErr) {
		t.Errorf("Expected reestablish error, got %v", err)
	}
	if invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", invocations)
	}
}

func TestEngine_Do_ReconnectWithoutResource(t *testing.T) {
	rec := &recorder{}
	cfg := MustConfig(testRules(), Schedule{0})
	engine := NewEngine(cfg, WithSleeper(rec.sleep))

	err := engine.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("reconnect then retry")
	})
	if !errors.Is(err, dbretry.ErrNoResource) {
		t.Errorf("Expected ErrNoResource, got %v", err)
	}
}

// Scenario: no logger configured.
func TestEngine_Do_WithoutLogger(t *testing.T) {
	rec := &recorder{}
	cfg := MustConfig(testRules(), Schedule{time.Second})
	engine := NewEngine(cfg, WithSleeper(rec.sleep), WithResource(rec))

	invocations := 0
	err := engine.Do(context.Background(), failing(&invocations, "sleep then retry"))
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if invocations != 2 {
		t.Errorf("Expected 2 invocations, got %d", invocations)
	}
	if len(rec.warnings) != 0 {
		t.Errorf("Expected no log interaction, got %v", rec.warnings)
	}
}

func TestEngine_Do_LogsDescriptiveWarning(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{2 * time.Second}, rec)

	_ = engine.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("sleep then reconnect then retry")
	})

	if len(rec.warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", rec.warnings)
	}
	want := "Query failed: 'sleep then reconnect then retry'. Sleeping for 2s, reconnecting, retrying for the 1st time."
	if rec.warnings[0] != want {
		t.Errorf("Expected %q, got %q", want, rec.warnings[0])
	}
}

func TestEngine_Do_WarningOrdinalsIncrease(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{0, 0, 0, 0}, rec)

	_ = engine.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("retry")
	})

	ordinals := []string{"1st", "2nd", "3rd", "4th"}
	if len(rec.warnings) != len(ordinals) {
		t.Fatalf("Expected %d warnings, got %d", len(ordinals), len(rec.warnings))
	}
	for i, o := range ordinals {
		if !strings.HasSuffix(rec.warnings[i], "Retrying for the "+o+" time.") {
			t.Errorf("Warning %d: expected ordinal %s, got %q", i, o, rec.warnings[i])
		}
	}
}

func TestEngine_Do_ContextCancelledDuringSleep(t *testing.T) {
	cfg := MustConfig(testRules(), Schedule{time.Minute})
	engine := NewEngine(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	original := errors.New("sleep then retry")
	invocations := 0
	start := time.Now()
	err := engine.Do(ctx, func(ctx context.Context) error {
		invocations++
		return original
	})

	if err != original {
		t.Errorf("Expected original error, got %v", err)
	}
	if invocations != 1 {
		t.Errorf("Expected 1 invocation, got %d", invocations)
	}
	if time.Since(start) > 10*time.Second {
		t.Errorf("Sleep was not interrupted")
	}
}

func TestEngine_Reconfigure_DoesNotAffectRunningCall(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, Schedule{0, 0}, rec)
	empty := MustConfig(nil, Schedule{})

	invocations := 0
	err := engine.Do(context.Background(), func(ctx context.Context) error {
		invocations++
		if invocations == 1 {
			engine.Reconfigure(empty)
			return errors.New("retry")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected the call to keep its snapshot, got %v", err)
	}
	if engine.Config() != empty {
		t.Error("Expected new calls to see the new snapshot")
	}

	invocations = 0
	err = engine.Do(context.Background(), failing(&invocations, "retry"))
	if err == nil || invocations != 1 {
		t.Errorf("Expected new snapshot to disable retries, got err=%v invocations=%d", err, invocations)
	}
}

func TestEngine_ConcurrentCallsAreIndependent(t *testing.T) {
	cfg := MustConfig(testRules(), Schedule{0, 0, 0})
	engine := NewEngine(cfg, WithSleeper(func(context.Context, time.Duration) error { return nil }))

	var wg sync.WaitGroup
	counts := make([]int, 20)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = engine.Do(context.Background(), func(ctx context.Context) error {
				counts[i]++
				return errors.New("retry")
			})
		}(i)
	}
	wg.Wait()

	for i, c := range counts {
		if c != 4 {
			t.Errorf("Call %d: expected 4 invocations, got %d", i, c)
		}
	}
}

func TestNewEngine_PanicsOnNilConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for nil config")
		}
	}()
	NewEngine(nil)
}
