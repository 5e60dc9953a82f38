package retry

import (
	"fmt"
	"strings"
	"time"
)

// Strategy maps attempt number to wait duration.
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyFixed       Strategy = "fixed"
	StrategyFibonacci   Strategy = "fibonacci"
)

const (
	defaultMultiplier   = 2.0
	defaultJitterFactor = 0.1
)

// ParseStrategy normalizes backoff strategy name.
// Params: raw strategy string; empty selects exponential.
// Returns: strategy constant or error.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyExponential:
		return StrategyExponential, nil
	case StrategyLinear:
		return StrategyLinear, nil
	case StrategyFixed:
		return StrategyFixed, nil
	case StrategyFibonacci:
		return StrategyFibonacci, nil
	default:
		return "", fmt.Errorf("unsupported retry strategy %q", raw)
	}
}

// Config is pure retry policy for one call.
// Params: attempt ceiling, backoff shape, jitter, error classification lists, and hooks.
// Returns: policy consumed by Do.
type Config struct {
	MaxRetries   int // retries after the first attempt
	Strategy     Strategy
	InitialDelay time.Duration
	MaxDelay     time.Duration // zero disables clamping
	Jitter       bool
	JitterFactor float64
	Multiplier   float64

	RetryableErrors    []ErrorMatcher
	NonRetryableErrors []ErrorMatcher

	// ShouldRetry overrides every other classification rule when set.
	ShouldRetry func(err error) bool

	// OnRetry runs after the inter-attempt sleep, before the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// withDefaults fills zero-valued tuning fields.
// Params: none.
// Returns: normalized copy.
func (c Config) withDefaults() Config {
	out := c
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if out.Strategy == "" {
		out.Strategy = StrategyExponential
	}
	if out.Multiplier <= 0 {
		out.Multiplier = defaultMultiplier
	}
	if out.Jitter && out.JitterFactor <= 0 {
		out.JitterFactor = defaultJitterFactor
	}
	if out.InitialDelay < 0 {
		out.InitialDelay = 0
	}
	return out
}

// Validate checks policy fields that cannot be normalized.
// Params: none.
// Returns: error for unknown strategy or inverted delay bounds.
func (c Config) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.MaxDelay > 0 && c.InitialDelay > c.MaxDelay {
		return fmt.Errorf("initial delay %s exceeds max delay %s", c.InitialDelay, c.MaxDelay)
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return fmt.Errorf("jitter factor %.2f must be within [0,1]", c.JitterFactor)
	}
	return nil
}

// Overrides carries optional per-field replacements for a preset.
// Params: nil pointer/slice means "keep preset value".
// Returns: patch applied by Apply.
type Overrides struct {
	MaxRetries         *int
	Strategy           string
	InitialDelay       *time.Duration
	MaxDelay           *time.Duration
	Jitter             *bool
	JitterFactor       *float64
	Multiplier         *float64
	RetryableErrors    []string
	NonRetryableErrors []string
}

// Apply patches config with overrides.
// Params: override set, usually decoded from configuration.
// Returns: patched config or parse error for strategy/matchers.
func (c Config) Apply(o Overrides) (Config, error) {
	out := c
	if o.MaxRetries != nil {
		out.MaxRetries = *o.MaxRetries
	}
	if strings.TrimSpace(o.Strategy) != "" {
		strategy, err := ParseStrategy(o.Strategy)
		if err != nil {
			return Config{}, err
		}
		out.Strategy = strategy
	}
	if o.InitialDelay != nil {
		out.InitialDelay = *o.InitialDelay
	}
	if o.MaxDelay != nil {
		out.MaxDelay = *o.MaxDelay
	}
	if o.Jitter != nil {
		out.Jitter = *o.Jitter
	}
	if o.JitterFactor != nil {
		out.JitterFactor = *o.JitterFactor
	}
	if o.Multiplier != nil {
		out.Multiplier = *o.Multiplier
	}
	if len(o.RetryableErrors) > 0 {
		matchers, err := ParseMatchers(o.RetryableErrors)
		if err != nil {
			return Config{}, fmt.Errorf("retryable_errors: %w", err)
		}
		out.RetryableErrors = matchers
	}
	if len(o.NonRetryableErrors) > 0 {
		matchers, err := ParseMatchers(o.NonRetryableErrors)
		if err != nil {
			return Config{}, fmt.Errorf("non_retryable_errors: %w", err)
		}
		out.NonRetryableErrors = matchers
	}
	return out, out.Validate()
}
