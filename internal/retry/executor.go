package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"alertcore/internal/clock"
)

// Outcome labels reported to the recorder.
const (
	OutcomeSuccess      = "success"
	OutcomeNonRetryable = "non_retryable"
	OutcomeExhausted    = "exhausted"
	OutcomeCancelled    = "cancelled"
)

// Recorder observes executor activity for metrics export.
// Params: operation name and attempt/outcome labels.
// Returns: none.
type Recorder interface {
	ObserveAttempt(operation string)
	ObserveOutcome(operation, outcome string)
}

// Attempt is one audit entry of a retried call.
type Attempt struct {
	Number    int           `json:"attempt"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Err       error         `json:"-"`
	Delay     time.Duration `json:"delay,omitempty"`
}

// Result is the final outcome of Do.
// Params: value on success, attempt count, cumulative sleep, and audit trail.
// Returns: diagnostics for callers and logs.
type Result[T any] struct {
	Value      T
	Attempts   int
	TotalDelay time.Duration
	LastError  error
	History    []Attempt
}

// Executor runs operations under retry policies.
// Params: logger, optional recorder, sleeper, random source, and clock.
// Returns: reusable executor; safe for concurrent use.
type Executor struct {
	logger   *slog.Logger
	recorder Recorder
	sleep    func(ctx context.Context, d time.Duration) error
	rnd      func() float64
	clock    clock.Clock
}

// Option customizes Executor.
type Option func(*Executor)

// WithSleeper replaces inter-attempt sleep.
// Params: sleep function honouring ctx.
// Returns: executor option.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithRand replaces jitter random source.
// Params: function returning uniform values in [0,1).
// Returns: executor option.
func WithRand(rnd func() float64) Option {
	return func(e *Executor) {
		if rnd != nil {
			e.rnd = rnd
		}
	}
}

// WithClock replaces attempt timestamp source.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) {
		if c != nil {
			e.clock = c
		}
	}
}

// New builds retry executor.
// Params: logger, optional recorder (nil disables metrics), and options.
// Returns: executor with real sleep, math/rand/v2 jitter, and UTC clock by default.
func New(logger *slog.Logger, recorder Recorder, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	executor := &Executor{
		logger:   logger,
		recorder: recorder,
		sleep:    clock.Sleep,
		rnd:      rand.Float64,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Do executes op under cfg until success, non-retryable failure, exhaustion, or cancellation.
// Params: context for sleeps, executor, operation name, operation, and policy.
// Returns: result with audit trail and the original last error on failure (ctx error when cancelled mid-sleep).
func Do[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error), cfg Config) (Result[T], error) {
	cfg = cfg.withDefaults()
	var result Result[T]
	for attempt := 1; ; attempt++ {
		entry := Attempt{Number: attempt, StartTime: e.clock.Now()}
		value, err := op(ctx)
		entry.EndTime = e.clock.Now()
		entry.Err = err
		result.Attempts = attempt
		e.observeAttempt(name)

		if err == nil {
			result.History = append(result.History, entry)
			result.Value = value
			result.LastError = nil
			if attempt > 1 {
				e.logger.Info("retry operation recovered", "operation", name, "attempts", attempt)
			}
			e.observeOutcome(name, OutcomeSuccess)
			return result, nil
		}
		result.LastError = err

		if !Classify(cfg, err) {
			result.History = append(result.History, entry)
			e.logger.Warn("retry operation failed with non-retryable error", "operation", name, "attempt", attempt, "error", err.Error())
			e.observeOutcome(name, OutcomeNonRetryable)
			return result, err
		}
		if attempt > cfg.MaxRetries {
			result.History = append(result.History, entry)
			e.logger.Warn("retry attempts exhausted", "operation", name, "attempts", attempt, "error", err.Error())
			e.observeOutcome(name, OutcomeExhausted)
			return result, err
		}

		delay := Delay(cfg, attempt, e.rnd)
		entry.Delay = delay
		result.History = append(result.History, entry)
		e.logger.Debug("retry operation scheduled", "operation", name, "attempt", attempt, "delay", delay.String(), "error", err.Error())

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			e.observeOutcome(name, OutcomeCancelled)
			return result, sleepErr
		}
		result.TotalDelay += delay
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
	}
}

// Value executes op like Do and unwraps the result.
// Params: same as Do.
// Returns: operation value or the original last error.
func Value[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error), cfg Config) (T, error) {
	result, err := Do(ctx, e, name, op, cfg)
	if err != nil {
		var zero T
		return zero, err
	}
	return result.Value, nil
}

// Wrap returns an equivalent operation that retries under cfg.
// Params: executor, operation name, policy, and operation.
// Returns: retrying operation with unchanged signature.
func Wrap[T any](e *Executor, name string, cfg Config, op func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Value(ctx, e, name, op, cfg)
	}
}

func (e *Executor) observeAttempt(name string) {
	if e.recorder != nil {
		e.recorder.ObserveAttempt(name)
	}
}

func (e *Executor) observeOutcome(name, outcome string) {
	if e.recorder != nil {
		e.recorder.ObserveOutcome(name, outcome)
	}
}
