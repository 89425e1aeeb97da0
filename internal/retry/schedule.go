package retry

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// Schedule is the ordered list of delays used before each retry.
// Its length is the maximum number of retries; entry k is the delay before retry k.
type Schedule []time.Duration

// MaxAttempts returns the maximum number of retries.
func (s Schedule) MaxAttempts() int {
	return len(s)
}

// DelayFor returns the delay before retry attempt (0-based).
// ok is false when the attempt is outside the schedule.
func (s Schedule) DelayFor(attempt int) (delay time.Duration, ok bool) {
	if attempt < 0 || attempt >= len(s) {
		return 0, false
	}
	return s[attempt], true
}

// String renders the schedule as "[1s 2s 4s]".
func (s Schedule) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (s Schedule) validate() error {
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("schedule entry %d is negative (%v): %w", i, d, dbretry.ErrInvalidConfig)
		}
	}
	return nil
}

// ParseSchedule parses delay strings. Each entry is a Go duration ("500ms",
// "2s") or a bare number of seconds ("1", "0.5").
func ParseSchedule(values []string) (Schedule, error) {
	s := make(Schedule, 0, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		d, err := time.ParseDuration(v)
		if err != nil {
			secs, ferr := strconv.ParseFloat(v, 64)
			if ferr != nil {
				return nil, fmt.Errorf("schedule entry %d %q is not a duration: %w", i, v, dbretry.ErrInvalidConfig)
			}
			d = time.Duration(secs * float64(time.Second))
		}
		s = append(s, d)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// BackoffOption is a functional option for NewExponentialSchedule.
type BackoffOption func(*backoff)

type backoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64

	// jitter of 0.1 means +/- 10% randomness
	jitter     float64
	jitterFunc func() float64
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *backoff) {
		b.initialDelay = d
	}
}

// WithMaxDelay caps every delay.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *backoff) {
		b.maxDelay = d
	}
}

// WithMultiplier sets the factor by which delay increases between attempts.
func WithMultiplier(m float64) BackoffOption {
	return func(b *backoff) {
		b.multiplier = m
	}
}

// WithJitter sets the jitter factor (0.0-1.0) to add randomness to delays.
func WithJitter(j float64) BackoffOption {
	return func(b *backoff) {
		b.jitter = j
	}
}

// WithJitterFunc sets a custom function for generating random jitter values in [0, 1).
func WithJitterFunc(f func() float64) BackoffOption {
	return func(b *backoff) {
		b.jitterFunc = f
	}
}

// NewExponentialSchedule precomputes an exponential backoff as a Schedule
// with the given number of retries.
//
// Defaults: 100ms initial delay, multiplier 2, 30s cap, 10% jitter.
//
//	s := retry.NewExponentialSchedule(3,
//	    retry.WithInitialDelay(200*time.Millisecond),
//	    retry.WithJitter(0),
//	) // [200ms 400ms 800ms]
func NewExponentialSchedule(attempts int, opts ...BackoffOption) Schedule {
	b := &backoff{
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		jitter:       0.1,
	}
	for _, opt := range opts {
		opt(b)
	}

	if attempts < 0 {
		attempts = 0
	}
	s := make(Schedule, attempts)
	for i := range s {
		s[i] = b.delay(i)
	}
	return s
}

func (b *backoff) delay(attempt int) time.Duration {
	delayMs := float64(b.initialDelay.Milliseconds()) * math.Pow(b.multiplier, float64(attempt))

	if delayMs > float64(b.maxDelay.Milliseconds()) {
		delayMs = float64(b.maxDelay.Milliseconds())
	}

	if b.jitter > 0 {
		jitterFunc := b.jitterFunc
		if jitterFunc == nil {
			jitterFunc = rand.Float64
		}
		// Map [0,1) to [-1,1)
		randomOffset := (jitterFunc() - 0.5) * 2.0
		delayMs *= 1.0 + (b.jitter * randomOffset)
	}

	if delayMs < 0 {
		delayMs = 0
	}
	return time.Duration(delayMs) * time.Millisecond
}

func (s Schedule) clone() Schedule {
	return slices.Clone(s)
}
