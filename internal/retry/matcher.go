package retry

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// ErrorMatcher selects errors by name, message text, pattern, or identity.
// Params: exactly one of Text, Pattern, Target is normally set.
// Returns: predicate used by classification lists.
type ErrorMatcher struct {
	// Text matches an exact error name or a case-insensitive message substring.
	Text    string
	Pattern *regexp.Regexp
	Target  error
}

// MatchText builds name/substring matcher.
func MatchText(text string) ErrorMatcher {
	return ErrorMatcher{Text: text}
}

// MatchPattern builds regular-expression matcher over error message.
// Params: RE2 expression.
// Returns: matcher or compile error.
func MatchPattern(expr string) (ErrorMatcher, error) {
	compiled, err := regexp.Compile(expr)
	if err != nil {
		return ErrorMatcher{}, fmt.Errorf("compile error pattern %q: %w", expr, err)
	}
	return ErrorMatcher{Pattern: compiled}, nil
}

// MatchTarget builds errors.Is matcher.
func MatchTarget(target error) ErrorMatcher {
	return ErrorMatcher{Target: target}
}

// ParseMatcher converts config string into matcher.
// Params: "re:<expr>" for patterns, anything else is name/substring text.
// Returns: matcher or error for empty input and invalid patterns.
func ParseMatcher(raw string) (ErrorMatcher, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ErrorMatcher{}, errors.New("error matcher must be non-empty")
	}
	if expr, ok := strings.CutPrefix(trimmed, "re:"); ok {
		return MatchPattern(expr)
	}
	return MatchText(trimmed), nil
}

// ParseMatchers converts a config list into matchers.
// Params: raw matcher strings.
// Returns: matchers in input order or first parse error.
func ParseMatchers(raw []string) ([]ErrorMatcher, error) {
	out := make([]ErrorMatcher, 0, len(raw))
	for index, item := range raw {
		matcher, err := ParseMatcher(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", index, err)
		}
		out = append(out, matcher)
	}
	return out, nil
}

// Match reports whether err is selected by matcher.
// Params: candidate error.
// Returns: true when any configured criterion matches.
func (m ErrorMatcher) Match(err error) bool {
	if err == nil {
		return false
	}
	if m.Target != nil && errors.Is(err, m.Target) {
		return true
	}
	message := err.Error()
	if m.Pattern != nil && m.Pattern.MatchString(message) {
		return true
	}
	if m.Text == "" {
		return false
	}
	for _, name := range errorNames(err) {
		if name == m.Text {
			return true
		}
	}
	return strings.Contains(strings.ToLower(message), strings.ToLower(m.Text))
}

// String renders matcher for logs.
func (m ErrorMatcher) String() string {
	switch {
	case m.Pattern != nil:
		return "re:" + m.Pattern.String()
	case m.Target != nil:
		return "is:" + m.Target.Error()
	default:
		return m.Text
	}
}

func matchAny(matchers []ErrorMatcher, err error) bool {
	for _, matcher := range matchers {
		if matcher.Match(err) {
			return true
		}
	}
	return false
}

// errorNames collects names of every error in the unwrap chain.
// Params: error chain head.
// Returns: Name() values and bare type names ("OpError" for *net.OpError).
func errorNames(err error) []string {
	type named interface {
		Name() string
	}
	var names []string
	for current := err; current != nil; current = errors.Unwrap(current) {
		if typed, ok := current.(named); ok {
			names = append(names, typed.Name())
		}
		kind := reflect.TypeOf(current)
		for kind.Kind() == reflect.Pointer {
			kind = kind.Elem()
		}
		if kind.Name() != "" {
			names = append(names, kind.Name())
		}
	}
	return names
}
