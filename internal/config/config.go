package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vvka-141/dbretry/internal/retry"
	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Driver         string `yaml:"driver,omitempty"`
	DSN            string `yaml:"dsn,omitempty"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// RuleConfig is one custom classification rule.
// Match is "regexp" (the default) or "substring".
type RuleConfig struct {
	Pattern string   `yaml:"pattern"`
	Match   string   `yaml:"match,omitempty"`
	Actions []string `yaml:"actions"`
}

type RetryConfig struct {
	RuleSet  string       `yaml:"ruleset,omitempty"`
	Schedule []string     `yaml:"schedule,omitempty"`
	Rules    []RuleConfig `yaml:"rules,omitempty"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Retry      RetryConfig      `yaml:"retry"`
	Timeout    string           `yaml:"timeout,omitempty"`
}

const ConfigFileName = "dbretry.yaml"

const (
	MatchRegexp    = "regexp"
	MatchSubstring = "substring"
)

// Load reads dbretry.yaml from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a config file from an explicit path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, err, dbretry.ErrInvalidConfig)
	}
	return &cfg, nil
}

// Driver returns the configured driver. A nil config selects the default driver.
func (c *ProjectConfig) Driver() (dbretry.Driver, error) {
	if c == nil {
		return dbretry.ParseDriver("")
	}
	return dbretry.ParseDriver(c.Connection.Driver)
}

// TimeoutDuration returns the configured timeout, or dbretry.DefaultTimeout when unset.
func (c *ProjectConfig) TimeoutDuration() (time.Duration, error) {
	if c == nil || c.Timeout == "" {
		return dbretry.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("timeout %q must be a positive duration: %w", c.Timeout, dbretry.ErrInvalidConfig)
	}
	return d, nil
}

// Build compiles the retry section into an engine configuration.
// Custom rules come first, followed by the built-in rule set (chosen by driver
// unless named explicitly). The returned warnings describe rules that will
// never retry.
// A nil config yields the defaults for the default driver.
func (c *ProjectConfig) Build() (*retry.Config, []string, error) {
	driver, err := c.Driver()
	if err != nil {
		return nil, nil, err
	}

	var rc RetryConfig
	if c != nil {
		rc = c.Retry
	}

	var rules []retry.Rule
	for i, r := range rc.Rules {
		rule, err := r.compile()
		if err != nil {
			return nil, nil, fmt.Errorf("retry.rules[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}

	setName := strings.ToLower(strings.TrimSpace(rc.RuleSet))
	if setName == "" {
		setName = driver.DefaultRuleSet()
	}
	builtin, ok := retry.RuleSet(setName)
	if !ok {
		return nil, nil, fmt.Errorf("retry.ruleset %q (want mysql, postgres or none): %w", rc.RuleSet, dbretry.ErrInvalidConfig)
	}
	rules = append(rules, builtin...)

	schedule := retry.Schedule(dbretry.DefaultSchedule())
	if len(rc.Schedule) > 0 {
		if schedule, err = retry.ParseSchedule(rc.Schedule); err != nil {
			return nil, nil, fmt.Errorf("retry.schedule: %w", err)
		}
	}

	cfg, err := retry.NewConfig(rules, schedule)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	all := cfg.Rules()
	for _, i := range cfg.NonRetryingRules() {
		warnings = append(warnings, fmt.Sprintf("rule %d (%s) has no retry action; matching errors are recovered from but still returned", i, all[i]))
	}
	return cfg, warnings, nil
}

func (r RuleConfig) compile() (retry.Rule, error) {
	if r.Pattern == "" {
		return retry.Rule{}, fmt.Errorf("pattern is required: %w", dbretry.ErrInvalidConfig)
	}
	if len(r.Actions) == 0 {
		return retry.Rule{}, fmt.Errorf("pattern %q has no actions: %w", r.Pattern, dbretry.ErrInvalidConfig)
	}

	var matcher dbretry.Matcher
	switch strings.ToLower(r.Match) {
	case "", MatchRegexp:
		m, err := retry.NewRegexpMatcher(r.Pattern)
		if err != nil {
			return retry.Rule{}, err
		}
		matcher = m
	case MatchSubstring:
		matcher = retry.NewSubstringMatcher(r.Pattern)
	default:
		return retry.Rule{}, fmt.Errorf("match %q (want regexp or substring): %w", r.Match, dbretry.ErrInvalidConfig)
	}

	actions := make([]dbretry.Action, 0, len(r.Actions))
	for _, name := range r.Actions {
		a, err := dbretry.ParseAction(name)
		if err != nil {
			return retry.Rule{}, err
		}
		actions = append(actions, a)
	}
	return retry.NewRule(matcher, actions...), nil
}
