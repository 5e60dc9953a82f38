package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type namedError struct{ msg string }

func (e *namedError) Error() string { return e.msg }
func (e *namedError) Name() string  { return "RateLimitError" }

type statusError struct{ code int }

func (e statusError) Error() string   { return fmt.Sprintf("http failure code=%d", e.code) }
func (e statusError) StatusCode() int { return e.code }

func TestIsTransientHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{err: errors.New("dial tcp: connection refused"), want: true},
		{err: errors.New("request timed out"), want: true},
		{err: errors.New("rate limit exceeded"), want: true},
		{err: errors.New("unexpected status 503"), want: true},
		{err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{err: statusError{code: 502}, want: true},
		{err: statusError{code: 429}, want: true},
		{err: statusError{code: 400}, want: false},
		{err: errors.New("invalid amount"), want: false},
		{err: nil, want: false},
	}
	for _, tc := range tests {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("IsTransient(%v): expected %v, got %v", tc.err, tc.want, got)
		}
	}
}

func TestClassifyCancellationIsNotRetried(t *testing.T) {
	t.Parallel()

	if Classify(Config{}, fmt.Errorf("op: %w", context.Canceled)) {
		t.Fatalf("cancellation must not be retried")
	}
}

func TestMatcherByName(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", &namedError{msg: "slow down"})
	if !MatchText("RateLimitError").Match(err) {
		t.Fatalf("expected Name() match")
	}
	if !MatchText("namedError").Match(err) {
		t.Fatalf("expected type-name match")
	}
	if MatchText("OtherError").Match(err) {
		t.Fatalf("unexpected match")
	}
}

func TestParseMatcherPatternAndText(t *testing.T) {
	t.Parallel()

	pattern, err := ParseMatcher(`re:^card \d+ declined$`)
	if err != nil {
		t.Fatalf("parse pattern: %v", err)
	}
	if !pattern.Match(errors.New("card 42 declined")) || pattern.Match(errors.New("card declined")) {
		t.Fatalf("unexpected pattern behaviour")
	}
	text, err := ParseMatcher("Insufficient Funds")
	if err != nil {
		t.Fatalf("parse text: %v", err)
	}
	if !text.Match(errors.New("charge failed: insufficient funds")) {
		t.Fatalf("expected case-insensitive substring match")
	}
	if _, err := ParseMatcher("re:("); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
	if _, err := ParseMatcher("  "); err == nil {
		t.Fatalf("expected empty matcher error")
	}
}

func TestMatchTarget(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	if !MatchTarget(sentinel).Match(fmt.Errorf("x: %w", sentinel)) {
		t.Fatalf("expected errors.Is match")
	}
}

func TestRegistryAppliesOverrides(t *testing.T) {
	t.Parallel()

	retries := 7
	delay := 250 * time.Millisecond
	registry, err := NewRegistry(map[string]Overrides{
		PresetQuick: {MaxRetries: &retries, InitialDelay: &delay, NonRetryableErrors: []string{"re:^fatal"}},
		"custom":    {Strategy: "linear"},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	quick, ok := registry.Get(PresetQuick)
	if !ok || quick.MaxRetries != 7 || quick.InitialDelay != delay || len(quick.NonRetryableErrors) != 1 {
		t.Fatalf("unexpected quick preset %+v", quick)
	}
	custom, ok := registry.Get("custom")
	if !ok || custom.Strategy != StrategyLinear {
		t.Fatalf("unexpected custom preset %+v", custom)
	}
	if _, err := NewRegistry(map[string]Overrides{PresetQuick: {Strategy: "random"}}); err == nil {
		t.Fatalf("expected invalid strategy error")
	}
}

func TestPresetNamesCoverAllKeys(t *testing.T) {
	t.Parallel()

	names := PresetNames()
	if len(names) != 7 {
		t.Fatalf("expected 7 presets, got %v", names)
	}
	for _, name := range names {
		cfg, ok := Preset(name)
		if !ok {
			t.Fatalf("preset %q missing", name)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("preset %q invalid: %v", name, err)
		}
	}
}
