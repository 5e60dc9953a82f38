package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type sleepCapture struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepCapture) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

type recorderCapture struct {
	mu       sync.Mutex
	attempts map[string]int
	outcomes map[string]string
}

func newRecorderCapture() *recorderCapture {
	return &recorderCapture{attempts: map[string]int{}, outcomes: map[string]string{}}
}

func (r *recorderCapture) ObserveAttempt(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[operation]++
}

func (r *recorderCapture) ObserveOutcome(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[operation] = outcome
}

func newTestExecutor(sleeper *sleepCapture, recorder Recorder) *Executor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, recorder, WithSleeper(sleeper.sleep), WithRand(func() float64 { return 0.5 }))
}

// failingOp fails failures times with err, then returns value.
func failingOp(failures int, err error, value string) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls <= failures {
			return "", err
		}
		return value, nil
	}, &calls
}

func TestDoFixedStrategyScenario(t *testing.T) {
	t.Parallel()

	sleeper := &sleepCapture{}
	recorder := newRecorderCapture()
	executor := newTestExecutor(sleeper, recorder)
	op, calls := failingOp(2, errors.New("connection reset by peer"), "ok")

	result, err := Do(context.Background(), executor, "x", op, Config{MaxRetries: 2, Strategy: StrategyFixed, InitialDelay: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Value != "ok" || result.Attempts != 3 || result.TotalDelay != 200*time.Millisecond {
		t.Fatalf("unexpected result %+v", result)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 calls, got %d", *calls)
	}
	if len(result.History) != 3 || result.History[2].Err != nil || result.History[0].Delay != 100*time.Millisecond {
		t.Fatalf("unexpected history %+v", result.History)
	}
	if recorder.attempts["x"] != 3 || recorder.outcomes["x"] != OutcomeSuccess {
		t.Fatalf("unexpected recorder state attempts=%v outcomes=%v", recorder.attempts, recorder.outcomes)
	}
}

func TestDoReturnsOriginalLastErrorWhenExhausted(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("upstream timeout")
	executor := newTestExecutor(&sleepCapture{}, nil)
	op, calls := failingOp(10, sentinel, "")

	result, err := Do(context.Background(), executor, "exhaust", op, Config{MaxRetries: 3, Strategy: StrategyFixed, InitialDelay: time.Millisecond})
	if err != sentinel {
		t.Fatalf("expected original error identity, got %v", err)
	}
	if *calls != 4 || result.Attempts != 4 || result.LastError != sentinel {
		t.Fatalf("unexpected calls=%d result=%+v", *calls, result)
	}
}

func TestDoNonRetryableBeatsRetryable(t *testing.T) {
	t.Parallel()

	executor := newTestExecutor(&sleepCapture{}, nil)
	op, calls := failingOp(5, errors.New("payment declined: network check failed"), "")
	cfg := Config{
		MaxRetries:         5,
		RetryableErrors:    []ErrorMatcher{MatchText("network")},
		NonRetryableErrors: []ErrorMatcher{MatchText("declined")},
	}
	if _, err := Do(context.Background(), executor, "pay", op, cfg); err == nil {
		t.Fatalf("expected error")
	}
	if *calls != 1 {
		t.Fatalf("non-retryable error must not be retried, got %d calls", *calls)
	}
}

func TestDoRetryableListRestrictsRetries(t *testing.T) {
	t.Parallel()

	executor := newTestExecutor(&sleepCapture{}, nil)
	op, calls := failingOp(5, errors.New("connection refused"), "")
	cfg := Config{MaxRetries: 5, RetryableErrors: []ErrorMatcher{MatchText("deadlock")}}
	if _, err := Do(context.Background(), executor, "db", op, cfg); err == nil {
		t.Fatalf("expected error")
	}
	if *calls != 1 {
		t.Fatalf("errors outside retryable list must abort, got %d calls", *calls)
	}
}

func TestDoPredicateIsAuthoritative(t *testing.T) {
	t.Parallel()

	executor := newTestExecutor(&sleepCapture{}, nil)
	op, calls := failingOp(2, Permanent(errors.New("validation failed")), "done")
	cfg := Config{MaxRetries: 3, Strategy: StrategyFixed, ShouldRetry: func(error) bool { return true }}
	value, err := Value(context.Background(), executor, "predicate", op, cfg)
	if err != nil || value != "done" || *calls != 3 {
		t.Fatalf("expected predicate to force retries, value=%q err=%v calls=%d", value, err, *calls)
	}
}

func TestDoPermanentMarkerStopsRetries(t *testing.T) {
	t.Parallel()

	executor := newTestExecutor(&sleepCapture{}, nil)
	root := errors.New("connection rejected by policy")
	op, calls := failingOp(3, Permanent(root), "")
	_, err := Do(context.Background(), executor, "perm", op, Config{MaxRetries: 3})
	if !errors.Is(err, root) || !IsPermanent(err) {
		t.Fatalf("expected permanent error wrapping root, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected single call, got %d", *calls)
	}
}

func TestDoOnRetryCallback(t *testing.T) {
	t.Parallel()

	executor := newTestExecutor(&sleepCapture{}, nil)
	op, _ := failingOp(2, errors.New("503 service unavailable"), "ok")
	var seen []int
	cfg := Config{
		MaxRetries:   3,
		Strategy:     StrategyLinear,
		InitialDelay: 10 * time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if err == nil {
				t.Errorf("onRetry received nil error")
			}
			if delay != time.Duration(attempt)*10*time.Millisecond {
				t.Errorf("unexpected delay %s for attempt %d", delay, attempt)
			}
			seen = append(seen, attempt)
		},
	}
	if _, err := Do(context.Background(), executor, "cb", op, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("unexpected onRetry attempts %v", seen)
	}
}

func TestDoCancelledDuringSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	executor := newTestExecutor(&sleepCapture{}, nil)
	op, calls := failingOp(5, errors.New("timeout"), "")
	_, err := Do(ctx, executor, "cancel", op, Config{MaxRetries: 5, InitialDelay: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected single call before cancellation, got %d", *calls)
	}
}

func TestWrapRetriesTransparently(t *testing.T) {
	t.Parallel()

	executor := newTestExecutor(&sleepCapture{}, nil)
	op, calls := failingOp(1, errors.New("rate limit exceeded"), "wrapped")
	wrapped := Wrap(executor, "wrap", Config{MaxRetries: 1, Strategy: StrategyFixed}, op)
	value, err := wrapped(context.Background())
	if err != nil || value != "wrapped" || *calls != 2 {
		t.Fatalf("unexpected wrapped result value=%q err=%v calls=%d", value, err, *calls)
	}
}

func TestPaymentPresetNeverRetriesDeclines(t *testing.T) {
	t.Parallel()

	cfg, ok := Preset(PresetPayment)
	if !ok {
		t.Fatalf("payment preset missing")
	}
	executor := newTestExecutor(&sleepCapture{}, nil)
	for _, message := range []string{"card declined", "insufficient funds", "validation failed: amount", "authentication required"} {
		op, calls := failingOp(5, errors.New(message+" (network timeout)"), "")
		if _, err := Do(context.Background(), executor, "capture", op, cfg); err == nil {
			t.Fatalf("expected error for %q", message)
		}
		if *calls != 1 {
			t.Fatalf("payment error %q retried %d times", message, *calls)
		}
	}
}
