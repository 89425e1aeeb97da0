package retry

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// Rule maps an error message pattern to the recovery actions taken when it matches.
type Rule struct {
	Pattern dbretry.Matcher
	Actions []dbretry.Action
}

// NewRule builds a rule. It does not validate; NewConfig does.
func NewRule(pattern dbretry.Matcher, actions ...dbretry.Action) Rule {
	return Rule{Pattern: pattern, Actions: actions}
}

// Has reports whether the rule lists the given action.
func (r Rule) Has(action dbretry.Action) bool {
	return slices.Contains(r.Actions, action)
}

// Retries reports whether the rule can cause another attempt.
func (r Rule) Retries() bool {
	return r.Has(dbretry.ActionRetry)
}

// String describes the rule as "pattern => action, action".
func (r Rule) String() string {
	return fmt.Sprintf("%s => %s", r.PatternString(), r.ActionString())
}

// PatternString describes the rule's matcher.
func (r Rule) PatternString() string {
	return describePattern(r.Pattern)
}

// ActionString lists the rule's actions comma-separated, in order.
func (r Rule) ActionString() string {
	names := make([]string, len(r.Actions))
	for i, a := range r.Actions {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}

func (r Rule) validate() error {
	if r.Pattern == nil {
		return fmt.Errorf("rule has no pattern: %w", dbretry.ErrInvalidConfig)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule %s has no actions: %w", describePattern(r.Pattern), dbretry.ErrInvalidConfig)
	}
	for _, a := range r.Actions {
		if !a.Valid() {
			return fmt.Errorf("rule %s has unknown %s: %w", describePattern(r.Pattern), a, dbretry.ErrInvalidConfig)
		}
	}
	return nil
}

// Classify returns the rule that decides what to do with an error message.
// Rules are tried in order and the first match wins. ok is false when no
// rule matches.
func Classify(message string, rules []Rule) (rule Rule, index int, ok bool) {
	for i, r := range rules {
		if r.Pattern.Match(message) {
			return r, i, true
		}
	}
	return Rule{}, -1, false
}

// RegexpMatcher matches messages against a regular expression.
type RegexpMatcher struct {
	re *regexp.Regexp
}

// NewRegexpMatcher compiles expr into a matcher.
func NewRegexpMatcher(expr string) (*RegexpMatcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %v: %w", expr, err, dbretry.ErrInvalidConfig)
	}
	return &RegexpMatcher{re: re}, nil
}

// MustRegexp is like NewRegexpMatcher but panics on an invalid expression.
// Intended for package-level rule tables.
func MustRegexp(expr string) *RegexpMatcher {
	return &RegexpMatcher{re: regexp.MustCompile(expr)}
}

// Match implements dbretry.Matcher.
func (m *RegexpMatcher) Match(message string) bool {
	return m.re.MatchString(message)
}

func (m *RegexpMatcher) String() string {
	return "/" + m.re.String() + "/"
}

// SubstringMatcher matches messages containing a fixed text, ignoring case.
type SubstringMatcher struct {
	needle string
}

// NewSubstringMatcher creates a case-insensitive substring matcher.
func NewSubstringMatcher(text string) *SubstringMatcher {
	return &SubstringMatcher{needle: strings.ToLower(text)}
}

// Match implements dbretry.Matcher.
func (m *SubstringMatcher) Match(message string) bool {
	return strings.Contains(strings.ToLower(message), m.needle)
}

func (m *SubstringMatcher) String() string {
	return fmt.Sprintf("%q", m.needle)
}

// MatcherFunc adapts a function to dbretry.Matcher.
type MatcherFunc func(message string) bool

// Match calls f(message).
func (f MatcherFunc) Match(message string) bool {
	return f(message)
}

func describePattern(m dbretry.Matcher) string {
	if s, ok := m.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", m)
}
