package retry

import (
	"fmt"
	"slices"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// Config is an immutable snapshot of a rule table and a retry schedule.
// Build one with NewConfig; derive changed copies with WithRules and WithSchedule.
type Config struct {
	rules    []Rule
	schedule Schedule
}

// NewConfig validates and copies rules and schedule into a new snapshot.
func NewConfig(rules []Rule, schedule Schedule) (*Config, error) {
	copied := make([]Rule, len(rules))
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		copied[i] = Rule{Pattern: r.Pattern, Actions: slices.Clone(r.Actions)}
	}
	if err := schedule.validate(); err != nil {
		return nil, err
	}
	return &Config{rules: copied, schedule: schedule.clone()}, nil
}

// MustConfig is like NewConfig but panics on invalid input.
func MustConfig(rules []Rule, schedule Schedule) *Config {
	cfg, err := NewConfig(rules, schedule)
	if err != nil {
		panic(err)
	}
	return cfg
}

// DefaultConfig returns the MySQL rule table with the default schedule.
func DefaultConfig() *Config {
	return MustConfig(MySQLRules(), Schedule(dbretry.DefaultSchedule()))
}

// Rules returns a copy of the rule table.
func (c *Config) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = Rule{Pattern: r.Pattern, Actions: slices.Clone(r.Actions)}
	}
	return out
}

// Schedule returns a copy of the retry schedule.
func (c *Config) Schedule() Schedule {
	return c.schedule.clone()
}

// WithRules returns a new snapshot with rules replacing the current table.
func (c *Config) WithRules(rules []Rule) (*Config, error) {
	return NewConfig(rules, c.schedule)
}

// WithSchedule returns a new snapshot with the given schedule.
func (c *Config) WithSchedule(schedule Schedule) (*Config, error) {
	return NewConfig(c.rules, schedule)
}

// Classify finds the rule for message in this snapshot's table.
func (c *Config) Classify(message string) (Rule, int, bool) {
	return Classify(message, c.rules)
}

// NonRetryingRules returns the indexes of rules that lack the retry action.
// Such rules perform their actions and then fail the call, so they never retry.
func (c *Config) NonRetryingRules() []int {
	var idx []int
	for i, r := range c.rules {
		if !r.Retries() {
			idx = append(idx, i)
		}
	}
	return idx
}
