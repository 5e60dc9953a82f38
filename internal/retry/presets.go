package retry

import (
	"sort"
	"time"
)

// Preset keys selectable from configuration and callers.
const (
	PresetDatabase    = "database"
	PresetExternalAPI = "externalApi"
	PresetPayment     = "payment"
	PresetEmail       = "email"
	PresetFileSystem  = "fileSystem"
	PresetQuick       = "quick"
	PresetAggressive  = "aggressive"
)

func textMatchers(texts ...string) []ErrorMatcher {
	out := make([]ErrorMatcher, 0, len(texts))
	for _, text := range texts {
		out = append(out, MatchText(text))
	}
	return out
}

// presets builds a fresh preset table so callers cannot mutate shared slices.
func presets() map[string]Config {
	return map[string]Config{
		PresetDatabase: {
			MaxRetries:         3,
			Strategy:           StrategyExponential,
			InitialDelay:       time.Second,
			MaxDelay:           10 * time.Second,
			Multiplier:         2,
			Jitter:             true,
			JitterFactor:       0.1,
			RetryableErrors:    textMatchers("connection", "timeout", "deadlock", "lock wait", "too many connections", "ECONNRESET", "ECONNREFUSED"),
			NonRetryableErrors: textMatchers("syntax error", "constraint", "duplicate key", "permission denied"),
		},
		PresetExternalAPI: {
			MaxRetries:         5,
			Strategy:           StrategyExponential,
			InitialDelay:       time.Second,
			MaxDelay:           30 * time.Second,
			Multiplier:         2,
			Jitter:             true,
			JitterFactor:       0.2,
			NonRetryableErrors: textMatchers("status 400", "status 401", "status 403", "status 404", "unauthorized", "forbidden", "invalid request"),
		},
		PresetPayment: {
			MaxRetries:   3,
			Strategy:     StrategyExponential,
			InitialDelay: 2 * time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
			Jitter:       true,
			JitterFactor: 0.1,
			RetryableErrors: textMatchers(
				"network", "timeout", "timed out", "connection", "rate limit", "too many requests",
				"service unavailable", "gateway timeout", "status 502", "status 503", "status 504",
			),
			NonRetryableErrors: textMatchers(
				"ValidationError", "AuthenticationError", "validation", "authentication",
				"unauthorized", "declined", "insufficient funds", "insufficient_funds",
				"invalid card", "card expired", "fraud",
			),
		},
		PresetEmail: {
			MaxRetries:         3,
			Strategy:           StrategyLinear,
			InitialDelay:       5 * time.Second,
			MaxDelay:           30 * time.Second,
			Jitter:             true,
			JitterFactor:       0.1,
			NonRetryableErrors: textMatchers("invalid recipient", "mailbox unavailable", "authentication", "550 "),
		},
		PresetFileSystem: {
			MaxRetries:         3,
			Strategy:           StrategyFixed,
			InitialDelay:       500 * time.Millisecond,
			MaxDelay:           2 * time.Second,
			RetryableErrors:    textMatchers("EBUSY", "EAGAIN", "EMFILE", "ENFILE", "resource temporarily unavailable", "too many open files", "device or resource busy"),
			NonRetryableErrors: textMatchers("no such file", "permission denied", "ENOENT", "EACCES"),
		},
		PresetQuick: {
			MaxRetries:   2,
			Strategy:     StrategyFixed,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
		},
		PresetAggressive: {
			MaxRetries:   10,
			Strategy:     StrategyFibonacci,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Minute,
			Jitter:       true,
			JitterFactor: 0.25,
		},
	}
}

// Preset returns named retry policy.
// Params: preset key (database/externalApi/payment/email/fileSystem/quick/aggressive).
// Returns: independent config copy and presence flag.
func Preset(name string) (Config, bool) {
	cfg, ok := presets()[name]
	return cfg, ok
}

// PresetNames returns preset keys in sorted order.
func PresetNames() []string {
	table := presets()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry resolves presets with configuration overrides applied.
// Params: none.
// Returns: immutable lookup built once at startup.
type Registry struct {
	configs map[string]Config
}

// NewRegistry applies overrides on top of built-in presets.
// Params: overrides keyed by preset name; unknown names define new policies on an exponential base.
// Returns: registry or first override error.
func NewRegistry(overrides map[string]Overrides) (*Registry, error) {
	configs := presets()
	for name, override := range overrides {
		base, ok := configs[name]
		if !ok {
			base = Config{Strategy: StrategyExponential, InitialDelay: time.Second, Multiplier: 2}
		}
		patched, err := base.Apply(override)
		if err != nil {
			return nil, &PresetError{Name: name, Err: err}
		}
		configs[name] = patched
	}
	return &Registry{configs: configs}, nil
}

// Get returns policy by name.
// Params: preset key.
// Returns: policy copy and presence flag.
func (r *Registry) Get(name string) (Config, bool) {
	cfg, ok := r.configs[name]
	return cfg, ok
}

// PresetError reports invalid preset override.
type PresetError struct {
	Name string
	Err  error
}

func (e *PresetError) Error() string {
	return "retry preset " + e.Name + ": " + e.Err.Error()
}

func (e *PresetError) Unwrap() error {
	return e.Err
}
